// Package audiofile reads WAV and MP3 files as streams of linear voice
// frames and records linear frames to WAV.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pidato/framing/frame"
)

var (
	ErrInvalid     = errors.New("audiofile: invalid file")
	ErrUnsupported = errors.New("audiofile: unsupported encoding")
)

// DefaultPtime is the frame duration in milliseconds.
const DefaultPtime = 20

// Source yields voice frames until io.EOF.
type Source interface {
	io.Closer

	Format() frame.Format
	ReadFrame() (*frame.Frame, error)
}

type Option func(*options)

type options struct {
	ptime int
	log   *slog.Logger
}

// WithPtime sets the duration of the frames returned by ReadFrame.
func WithPtime(ms int) Option {
	return func(o *options) {
		if ms > 0 {
			o.ptime = ms
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{ptime: DefaultPtime, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Reader cuts decoded mono audio into frames of one ptime. The last frame
// of a file may be shorter.
type Reader struct {
	format  frame.Format
	samples int
	fill    func(dst []int16) (int, error)
	closer  io.Closer

	pcm  []int16
	data []byte
	out  frame.Frame
	seq  int
	done bool
}

func newReader(rate int, o options, fill func([]int16) (int, error), c io.Closer) *Reader {
	n := max(rate*o.ptime/1000, 1)
	return &Reader{
		format:  frame.Linear(rate),
		samples: n,
		fill:    fill,
		closer:  c,
		pcm:     make([]int16, n),
		data:    make([]byte, 0, n*2),
	}
}

// Format is the linear format of every frame.
func (r *Reader) Format() frame.Format {
	return r.format
}

// FrameSamples is the length of a full frame.
func (r *Reader) FrameSamples() int {
	return r.samples
}

// ReadFrame returns the next frame. The frame is valid until the next call.
func (r *Reader) ReadFrame() (*frame.Frame, error) {
	if r.done {
		return nil, io.EOF
	}
	n, err := r.fill(r.pcm)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err != nil || n < len(r.pcm) {
		r.done = true
	}
	if n == 0 {
		return nil, io.EOF
	}
	r.data = frame.AppendInt16s(r.data[:0], r.pcm[:n])
	r.out = frame.Frame{
		Kind:    frame.KindVoice,
		Format:  r.format,
		Samples: n,
		Data:    r.data,
		Seq:     r.seq,
	}
	r.seq++
	return &r.out, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Open picks a decoder from the file extension.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r *Reader
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		r, err = OpenWAV(f, opts...)
	case ".mp3":
		r, err = OpenMP3(f, opts...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}
