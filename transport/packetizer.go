package transport

import (
	"github.com/pion/rtp"

	"github.com/pidato/framing/frame"
)

// Packetizer stamps payloads with RTP headers.
type Packetizer struct {
	PayloadType uint8
	SSRC        uint32
	Sequencer   rtp.Sequencer
	Timestamp   uint32
	Format      frame.Format

	started bool
}

func NewPacketizer(pt uint8, ssrc uint32, format frame.Format, seq rtp.Sequencer) *Packetizer {
	if seq == nil {
		seq = rtp.NewRandomSequencer()
	}
	return &Packetizer{
		PayloadType: pt,
		SSRC:        ssrc,
		Sequencer:   seq,
		Format:      format,
	}
}

// Packetize wraps payload in a packet and advances the timestamp by
// samples. The packet shares payload; the caller must not reuse it until
// the packet is written. The first packet carries the marker bit.
func (p *Packetizer) Packetize(payload []byte, samples int) *rtp.Packet {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         !p.started,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.Sequencer.NextSequenceNumber(),
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: payload,
	}
	p.started = true
	p.Timestamp += RTPSamples(p.Format, samples)
	return pkt
}

// Remark sets the marker bit on the next packet.
func (p *Packetizer) Remark() {
	p.started = false
}
