package transcode

import (
	"fmt"

	"layeh.com/gopus"
)

type g711Encoder struct {
	compress func(int16) byte
}

// NewULawEncoder compresses 8kHz linear audio to G.711 mu-law.
func NewULawEncoder() (Encoder, error) {
	return &g711Encoder{compress: LinearToULaw}, nil
}

// NewALawEncoder compresses 8kHz linear audio to G.711 A-law.
func NewALawEncoder() (Encoder, error) {
	return &g711Encoder{compress: LinearToALaw}, nil
}

func (e *g711Encoder) Rate() int { return 8000 }

func (e *g711Encoder) Encode(pcm []int16) ([]Packet, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	data := make([]byte, len(pcm))
	for i, s := range pcm {
		data[i] = e.compress(s)
	}
	return []Packet{{Data: data, Samples: len(pcm)}}, nil
}

func (e *g711Encoder) Close() error { return nil }

// opusEncoder buffers input until a whole 20ms packet is available.
type opusEncoder struct {
	enc     *gopus.Encoder
	partial []int16
	closed  bool
}

// NewOpusEncoder encodes 48kHz mono audio into 20ms Opus packets.
func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(opusRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("transcode: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc, partial: make([]int16, 0, opusFrame)}, nil
}

func (e *opusEncoder) Rate() int { return opusRate }

func (e *opusEncoder) Encode(pcm []int16) ([]Packet, error) {
	if e.closed {
		return nil, ErrClosed
	}
	var packets []Packet
	for len(pcm) > 0 {
		n := opusFrame - len(e.partial)
		if n > len(pcm) {
			n = len(pcm)
		}
		e.partial = append(e.partial, pcm[:n]...)
		pcm = pcm[n:]
		if len(e.partial) < opusFrame {
			break
		}
		data, err := e.enc.Encode(e.partial, opusFrame, opusFrame*2)
		e.partial = e.partial[:0]
		if err != nil {
			return packets, fmt.Errorf("transcode: opus encode: %w", err)
		}
		packets = append(packets, Packet{Data: data, Samples: opusFrame})
	}
	return packets, nil
}

func (e *opusEncoder) Close() error {
	e.closed = true
	e.partial = nil
	return nil
}
