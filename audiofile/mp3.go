package audiofile

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/pidato/framing/frame"
)

// mp3 decodes to interleaved 16-bit little-endian stereo.
const mp3FrameBytes = 4

// OpenMP3 decodes MP3 from rc and averages it to mono. Closing the Reader
// closes rc.
func OpenMP3(rc io.ReadCloser, opts ...Option) (*Reader, error) {
	o := newOptions(opts)
	d, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	rate := d.SampleRate()
	o.log.Debug("audiofile: mp3", "rate", rate, "bytes", d.Length())

	var raw []byte
	fill := func(dst []int16) (int, error) {
		want := len(dst) * mp3FrameBytes
		if cap(raw) < want {
			raw = make([]byte, want)
		}
		raw = raw[:want]
		n, err := io.ReadFull(d, raw)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		frames := n / mp3FrameBytes
		for i := 0; i < frames; i++ {
			l := int(frame.SampleAt(raw, i*2))
			r := int(frame.SampleAt(raw, i*2+1))
			dst[i] = int16((l + r) / 2)
		}
		return frames, err
	}
	return newReader(rate, o, fill, rc), nil
}
