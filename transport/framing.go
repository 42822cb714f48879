// Package transport moves regularized frames over RTP.
package transport

import (
	"errors"
	"sync"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/regulate"
)

var (
	ErrUnknownFormat      = errors.New("transport: no payload type for format")
	ErrUnknownPayloadType = errors.New("transport: unknown payload type")
	ErrDuplicate          = errors.New("transport: duplicate or old packet")
)

// Framing describes how a codec is cut into packets: MinBytes encoded bytes
// cover MinMs milliseconds.
type Framing struct {
	MinBytes  int
	MinMs     int
	DefaultMs int
	MaxMs     int
	Flags     regulate.Flags
}

// ChunkSize returns the payload length for ms milliseconds per packet.
// ms is clamped to the codec's range and rounded down to whole MinMs steps.
func (f Framing) ChunkSize(ms int) int {
	if ms <= 0 {
		ms = f.DefaultMs
	}
	ms = max(f.MinMs, min(ms, f.MaxMs))
	ms -= ms % f.MinMs
	return ms * f.MinBytes / f.MinMs
}

var framings = map[frame.Codec]Framing{
	frame.CodecULaw: {MinBytes: 80, MinMs: 10, DefaultMs: 20, MaxMs: 150},
	frame.CodecALaw: {MinBytes: 80, MinMs: 10, DefaultMs: 20, MaxMs: 150},
	frame.CodecG722: {MinBytes: 80, MinMs: 10, DefaultMs: 20, MaxMs: 150},
	frame.CodecG729: {MinBytes: 10, MinMs: 10, DefaultMs: 20, MaxMs: 230, Flags: regulate.FlagVAD},
}

// FramingOf returns the framing for f. Linear audio is sent big-endian.
// Codecs with self-delimiting packets, such as Opus, have none.
func FramingOf(f frame.Format) (Framing, bool) {
	if f.IsLinear() {
		return Framing{
			MinBytes:  f.SampleRate() / 50,
			MinMs:     10,
			DefaultMs: 20,
			MaxMs:     70,
			Flags:     regulate.FlagBigEndian,
		}, true
	}
	fr, ok := framings[f.Codec]
	return fr, ok
}

// RTPSamples converts a frame's sample count to RTP timestamp units. G.722
// keeps an 8kHz RTP clock for its 16kHz audio.
func RTPSamples(f frame.Format, samples int) uint32 {
	if f.Codec == frame.CodecG722 {
		return uint32(samples / 2)
	}
	return uint32(samples)
}

// ClockRate is the RTP clock of f.
func ClockRate(f frame.Format) uint32 {
	if f.Codec == frame.CodecG722 {
		return 8000
	}
	return uint32(f.SampleRate())
}

// PayloadSamples counts the samples in an encoded payload of f.
func PayloadSamples(f frame.Format, payload []byte) (int, bool) {
	if bps := f.BytesPerSample(); bps > 0 {
		return len(payload) / bps, true
	}
	switch f.Codec {
	case frame.CodecG729:
		return len(payload) * 8, true
	case frame.CodecG722:
		return len(payload) * 2, true
	}
	return 0, false
}

// PayloadTypes maps RTP payload types to formats. It starts with the static
// assignments of RFC 3551; dynamic types are added with Map.
type PayloadTypes struct {
	mu   sync.RWMutex
	byPT map[uint8]frame.Format
}

func NewPayloadTypes() *PayloadTypes {
	return &PayloadTypes{byPT: map[uint8]frame.Format{
		0:  frame.ULaw,
		8:  frame.ALaw,
		9:  frame.G722,
		11: frame.Linear(44100),
		18: frame.G729,
	}}
}

// Map binds pt to f, replacing any earlier binding of pt.
func (p *PayloadTypes) Map(pt uint8, f frame.Format) {
	p.mu.Lock()
	p.byPT[pt] = f
	p.mu.Unlock()
}

func (p *PayloadTypes) Format(pt uint8) (frame.Format, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.byPT[pt]
	return f, ok
}

// PayloadType returns the lowest payload type bound to f.
func (p *PayloadTypes) PayloadType(f frame.Format) (uint8, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var (
		best  uint8
		found bool
	)
	for pt, g := range p.byPT {
		if g.Equal(f) && (!found || pt < best) {
			best, found = pt, true
		}
	}
	return best, found
}
