package transcode

import (
	"errors"
	"fmt"

	"layeh.com/gopus"
)

var (
	ErrCorrupted = errors.New("transcode: corrupted payload")
)

const (
	opusRate = 48000
	// opusMaxFrame is 120ms at 48kHz, the longest packet Opus can carry.
	opusMaxFrame = 5760
	// opusFrame is the 20ms packet the encoder emits.
	opusFrame = 960
)

type g711Decoder struct {
	table *[256]int16
}

// NewULawDecoder expands G.711 mu-law at 8kHz.
func NewULawDecoder() (Decoder, error) {
	return &g711Decoder{table: &ulawDecodeTable}, nil
}

// NewALawDecoder expands G.711 A-law at 8kHz.
func NewALawDecoder() (Decoder, error) {
	return &g711Decoder{table: &alawDecodeTable}, nil
}

func (d *g711Decoder) Rate() int { return 8000 }

func (d *g711Decoder) Decode(payload []byte, pcm []int16) ([]int16, error) {
	for _, b := range payload {
		pcm = append(pcm, d.table[b])
	}
	return pcm, nil
}

func (d *g711Decoder) Close() error { return nil }

type opusDecoder struct {
	dec    *gopus.Decoder
	closed bool
}

// NewOpusDecoder decodes mono Opus at 48kHz.
func NewOpusDecoder() (Decoder, error) {
	dec, err := gopus.NewDecoder(opusRate, 1)
	if err != nil {
		return nil, fmt.Errorf("transcode: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) Rate() int { return opusRate }

func (d *opusDecoder) Decode(payload []byte, pcm []int16) ([]int16, error) {
	if d.closed {
		return pcm, ErrClosed
	}
	if len(payload) == 0 {
		return pcm, nil
	}
	if _, err := OpusSamples(payload); err != nil {
		return pcm, err
	}
	out, err := d.dec.Decode(payload, opusMaxFrame, false)
	if err != nil {
		return pcm, fmt.Errorf("%w: opus: %v", ErrCorrupted, err)
	}
	return append(pcm, out...), nil
}

func (d *opusDecoder) Close() error {
	d.closed = true
	return nil
}
