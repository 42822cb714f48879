package transport

import (
	"fmt"
	"log/slog"

	"github.com/pion/rtp"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/transcode"
)

// historySize is how far behind the highest sequence number a late packet
// may arrive and still be accepted.
const historySize = 64

// ReceiverStats counts packets seen by a Receiver.
type ReceiverStats struct {
	Received   int
	Duplicates int
	Lost       int
}

// Receiver turns the RTP packets of one SSRC into voice frames. It tracks
// sequence rollover, rejects duplicates and packets too old to use, and
// restores little-endian order for linear payloads. It does not reorder.
type Receiver struct {
	types *PayloadTypes
	log   *slog.Logger

	started bool
	ssrc    uint32
	highest int64  // extended sequence number
	history uint64 // bit i set: highest-i was received

	stats ReceiverStats
	buf   []byte
	out   frame.Frame
}

func NewReceiver(types *PayloadTypes, log *slog.Logger) *Receiver {
	if types == nil {
		types = NewPayloadTypes()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{types: types, log: log}
}

// Map binds a dynamic payload type.
func (r *Receiver) Map(pt uint8, f frame.Format) {
	r.types.Map(pt, f)
}

func (r *Receiver) Stats() ReceiverStats {
	return r.stats
}

// Reset forgets the sequence state.
func (r *Receiver) Reset() {
	r.started = false
	r.highest = 0
	r.history = 0
}

// Receive returns the voice frame carried by p. The frame is valid until the
// next call to Receive; Seq holds the extended sequence number.
func (r *Receiver) Receive(p *rtp.Packet) (*frame.Frame, error) {
	format, ok := r.types.Format(p.PayloadType)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadType, p.PayloadType)
	}
	if r.started && p.SSRC != r.ssrc {
		r.log.Debug("transport: ssrc changed", "from", r.ssrc, "to", p.SSRC)
		r.Reset()
	}
	seq, err := r.track(p.SequenceNumber)
	if err != nil {
		return nil, err
	}
	r.ssrc = p.SSRC
	r.stats.Received++

	payload := p.Payload
	if format.IsLinear() {
		// RTP L16 is network byte order.
		r.buf = append(r.buf[:0], payload...)
		frame.SwapBytes16(r.buf)
		payload = r.buf
	}
	samples, ok := PayloadSamples(format, payload)
	if !ok && format.Codec == frame.CodecOpus {
		n, err := transcode.OpusSamples(payload)
		if err != nil {
			return nil, err
		}
		samples = n
	}
	r.out = frame.Frame{
		Kind:    frame.KindVoice,
		Format:  format,
		Samples: samples,
		Data:    payload,
		Seq:     int(seq),
	}
	return &r.out, nil
}

func (r *Receiver) track(sn uint16) (int64, error) {
	if !r.started {
		r.started = true
		r.highest = int64(sn)
		r.history = 1
		return r.highest, nil
	}
	delta := int64(int16(sn - uint16(r.highest)))
	ext := r.highest + delta
	if delta > 0 {
		if delta >= historySize {
			r.history = 0
		} else {
			r.history <<= uint(delta)
		}
		r.history |= 1
		r.stats.Lost += int(delta - 1)
		r.highest = ext
		return ext, nil
	}
	age := -delta
	if ext < 0 || age >= historySize || r.history&(1<<uint(age)) != 0 {
		r.stats.Duplicates++
		return 0, fmt.Errorf("%w: seq %d", ErrDuplicate, sn)
	}
	r.history |= 1 << uint(age)
	if r.stats.Lost > 0 {
		r.stats.Lost--
	}
	return ext, nil
}
