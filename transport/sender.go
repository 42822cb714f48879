package transport

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v2/pkg/media"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/regulate"
)

// RTPWriter consumes packets, e.g. a pion/webrtc Track.
type RTPWriter interface {
	WriteRTP(*rtp.Packet) error
}

// SampleWriter consumes media samples, e.g. a pion/webrtc Track.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

type options struct {
	ptime   int
	types   *PayloadTypes
	ssrc    uint32
	seq     rtp.Sequencer
	log     *slog.Logger
	regOpts []regulate.Option
}

type Option func(*options)

// WithPtime sets the packet duration in milliseconds. Zero uses each
// codec's default.
func WithPtime(ms int) Option {
	return func(o *options) { o.ptime = ms }
}

func WithPayloadTypes(t *PayloadTypes) Option {
	return func(o *options) {
		if t != nil {
			o.types = t
		}
	}
}

func WithSSRC(ssrc uint32) Option {
	return func(o *options) { o.ssrc = ssrc }
}

func WithSequencer(s rtp.Sequencer) Option {
	return func(o *options) { o.seq = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRegulateOptions passes options to every Regularizer the sender builds.
func WithRegulateOptions(opts ...regulate.Option) Option {
	return func(o *options) { o.regOpts = append(o.regOpts, opts...) }
}

func newOptions(opts []Option) options {
	o := options{
		types: NewPayloadTypes(),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.seq == nil {
		o.seq = rtp.NewRandomSequencer()
	}
	return o
}

// pacer cuts a voice stream into packet-sized chunks, rebuilding its
// Regularizer whenever the stream changes format.
type pacer struct {
	options
	format  frame.Format
	framing Framing
	reg     *regulate.Regularizer
	active  bool

	onFormat func(frame.Format) error
	emit     func(payload []byte, samples int) error
}

func (p *pacer) send(f *frame.Frame) error {
	if f == nil || f.Kind != frame.KindVoice || f.Empty() {
		return nil
	}
	if !p.active || !f.Format.Equal(p.format) {
		if err := p.rebuild(f.Format); err != nil {
			return err
		}
	}
	if p.reg == nil {
		return p.emit(f.Data, f.Samples)
	}
	if err := p.reg.Feed(f); err != nil {
		if errors.Is(err, regulate.ErrOverflow) {
			p.log.Warn("transport: pacing buffer overflow, resetting", "format", p.format.String(), "err", err)
			p.reg.Reset()
		}
		return err
	}
	return p.drain()
}

func (p *pacer) drain() error {
	for out := p.reg.Read(); out != nil; out = p.reg.Read() {
		if err := p.emit(out.Data, out.Samples); err != nil {
			return err
		}
	}
	return nil
}

func (p *pacer) rebuild(format frame.Format) error {
	if err := p.onFormat(format); err != nil {
		return err
	}
	p.closeRegularizer()
	p.format = format
	p.active = true

	fr, ok := FramingOf(format)
	if !ok {
		p.log.Debug("transport: sending frames unpaced", "format", format.String())
		return nil
	}
	reg, err := regulate.New(fr.ChunkSize(p.ptime), fr.Flags, append([]regulate.Option{regulate.WithLogger(p.log)}, p.regOpts...)...)
	if err != nil {
		return err
	}
	p.framing = fr
	p.reg = reg
	p.log.Debug("transport: pacing",
		"format", format.String(),
		"chunk", reg.ChunkSize(),
		"flags", uint32(fr.Flags),
	)
	return nil
}

// setPtime changes the packet duration; data already buffered is recut.
func (p *pacer) setPtime(ms int) error {
	p.ptime = ms
	if p.reg == nil {
		return nil
	}
	if err := p.reg.Reconfigure(p.framing.ChunkSize(ms)); err != nil {
		return err
	}
	return p.drain()
}

func (p *pacer) chunkSize() int {
	if p.reg == nil {
		return 0
	}
	return p.reg.ChunkSize()
}

func (p *pacer) closeRegularizer() {
	if p.reg != nil {
		p.reg.Close()
		p.reg = nil
	}
}

// Sender paces voice frames into RTP packets.
type Sender struct {
	pacer
	w  RTPWriter
	pk *Packetizer
}

func NewSender(w RTPWriter, opts ...Option) *Sender {
	s := &Sender{w: w}
	s.options = newOptions(opts)
	s.onFormat = s.setFormat
	s.emit = s.write
	return s
}

func (s *Sender) setFormat(f frame.Format) error {
	pt, ok := s.types.PayloadType(f)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	if s.pk == nil {
		s.pk = NewPacketizer(pt, s.ssrc, f, s.seq)
		return nil
	}
	s.pk.PayloadType = pt
	s.pk.Format = f
	s.pk.Remark()
	return nil
}

func (s *Sender) write(payload []byte, samples int) error {
	return s.w.WriteRTP(s.pk.Packetize(payload, samples))
}

// Send queues f and writes every packet that is complete.
func (s *Sender) Send(f *frame.Frame) error {
	return s.send(f)
}

// SetPtime changes the packet duration in milliseconds.
func (s *Sender) SetPtime(ms int) error {
	return s.setPtime(ms)
}

// ChunkSize is the current payload length, or 0 when frames are sent as
// they come.
func (s *Sender) ChunkSize() int {
	return s.chunkSize()
}

func (s *Sender) Close() error {
	s.closeRegularizer()
	return nil
}

// SampleSender paces voice frames into media samples.
type SampleSender struct {
	pacer
	w SampleWriter
}

func NewSampleSender(w SampleWriter, opts ...Option) *SampleSender {
	s := &SampleSender{w: w}
	s.options = newOptions(opts)
	s.onFormat = func(frame.Format) error { return nil }
	s.emit = s.write
	return s
}

func (s *SampleSender) write(payload []byte, samples int) error {
	data := make([]byte, len(payload))
	copy(data, payload)
	return s.w.WriteSample(media.Sample{
		Data:    data,
		Samples: RTPSamples(s.format, samples),
	})
}

func (s *SampleSender) Send(f *frame.Frame) error {
	return s.send(f)
}

func (s *SampleSender) SetPtime(ms int) error {
	return s.setPtime(ms)
}

func (s *SampleSender) Close() error {
	s.closeRegularizer()
	return nil
}
