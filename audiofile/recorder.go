package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pidato/framing/frame"
)

var ErrClosed = errors.New("audiofile: recorder closed")

// Recorder writes mono 16-bit WAV. The header is completed by Close.
type Recorder struct {
	enc     *wav.Encoder
	format  frame.Format
	buf     *audio.IntBuffer
	pcm     []int16
	samples int
	file    *os.File
	closed  bool
}

func NewRecorder(ws io.WriteSeeker, rate int) *Recorder {
	return &Recorder{
		enc:    wav.NewEncoder(ws, rate, 16, 1, wavPCM),
		format: frame.Linear(rate),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
}

// Create records into a new file at path.
func Create(path string, rate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := NewRecorder(f, rate)
	r.file = f
	return r, nil
}

func (r *Recorder) Format() frame.Format {
	return r.format
}

// Samples is the count written so far.
func (r *Recorder) Samples() int {
	return r.samples
}

// Write appends a linear frame in the recorder's format. Frames without
// media are skipped.
func (r *Recorder) Write(f *frame.Frame) error {
	if f == nil || f.Kind != frame.KindVoice || f.Empty() {
		return nil
	}
	if !f.Format.Equal(r.format) {
		return fmt.Errorf("%w: recording %s, got %s", ErrUnsupported, r.format, f.Format)
	}
	if cap(r.pcm) < f.Samples {
		r.pcm = make([]int16, f.Samples)
	}
	n := frame.Int16s(r.pcm[:f.Samples], f.Data)
	return r.WriteSamples(r.pcm[:n])
}

func (r *Recorder) WriteSamples(s []int16) error {
	if r.closed {
		return ErrClosed
	}
	if len(s) == 0 {
		return nil
	}
	if cap(r.buf.Data) < len(s) {
		r.buf.Data = make([]int, len(s))
	}
	r.buf.Data = r.buf.Data[:len(s)]
	for i, v := range s {
		r.buf.Data[i] = int(v)
	}
	if err := r.enc.Write(r.buf); err != nil {
		return err
	}
	r.samples += len(s)
	return nil
}

// Close finishes the WAV header, and closes the file when the recorder
// was made by Create.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.enc.Close()
	if r.file != nil {
		err = errors.Join(err, r.file.Close())
	}
	return err
}
