// Package transcode converts media frames between formats.
//
// A Converter opens a Session for one (source, destination) pair. Sessions
// are stateful: codecs and resamplers keep history across frames, so a
// Session belongs to one stream and must be rebuilt, not shared, when the
// stream changes format.
package transcode

import (
	"errors"

	"github.com/pidato/framing/frame"
)

var (
	ErrNoRoute        = errors.New("transcode: no route")
	ErrWrongFormat    = errors.New("transcode: frame does not match session source")
	ErrWrongFrameSize = errors.New("transcode: wrong frame size")
	ErrClosed         = errors.New("transcode: session closed")
)

// Converter opens conversion sessions.
type Converter interface {
	Open(src, dst frame.Format) (Session, error)
}

// Session converts frames of Src into zero or more frames of Dst. The
// returned frames are owned by the caller.
type Session interface {
	Src() frame.Format
	Dst() frame.Format
	Convert(f *frame.Frame) ([]*frame.Owned, error)
	Close() error
}

// Decoder turns one encoded payload into linear samples at Rate.
type Decoder interface {
	Rate() int
	// Decode appends the decoded samples of payload to pcm.
	Decode(payload []byte, pcm []int16) ([]int16, error)
	Close() error
}

// Packet is one encoded payload and the samples it covers.
type Packet struct {
	Data    []byte
	Samples int
}

// Encoder turns linear samples at Rate into encoded payloads. Encoders with
// a fixed frame length buffer input, so one call may return no packets or
// several.
type Encoder interface {
	Rate() int
	Encode(pcm []int16) ([]Packet, error)
	Close() error
}

// Resampler converts a stream of mono samples between two rates.
type Resampler interface {
	Process(pcm []int16) ([]int16, error)
}

type (
	DecoderFunc   func() (Decoder, error)
	EncoderFunc   func() (Encoder, error)
	ResamplerFunc func(srcRate, dstRate int) (Resampler, error)
)
