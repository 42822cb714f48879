package audiofile

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const wavPCM = 1

var waveID = [4]byte{'W', 'A', 'V', 'E'}

// OpenWAV decodes PCM WAV from rs. Multichannel audio is averaged down to
// mono and every bit depth is scaled to 16 bits.
func OpenWAV(rs io.ReadSeeker, opts ...Option) (*Reader, error) {
	o := newOptions(opts)

	p := riff.New(rs)
	if err := p.ParseHeaders(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if p.Format != waveID {
		return nil, fmt.Errorf("%w: riff form %q", ErrInvalid, p.Format[:])
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	d := wav.NewDecoder(rs)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !d.IsValidFile() {
		return nil, ErrInvalid
	}
	if d.WavAudioFormat != wavPCM {
		return nil, fmt.Errorf("%w: wav format %d", ErrUnsupported, d.WavAudioFormat)
	}
	depth := int(d.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit", ErrUnsupported, depth)
	}
	chans := max(int(d.NumChans), 1)
	rate := int(d.SampleRate)
	o.log.Debug("audiofile: wav", "rate", rate, "channels", chans, "bits", depth)

	buf := &audio.IntBuffer{
		Format:         d.Format(),
		SourceBitDepth: depth,
	}
	fill := func(dst []int16) (int, error) {
		want := len(dst) * chans
		if cap(buf.Data) < want {
			buf.Data = make([]int, want)
		}
		buf.Data = buf.Data[:want]
		n, err := d.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		frames := n / chans
		for i := 0; i < frames; i++ {
			var sum int
			for c := 0; c < chans; c++ {
				sum += toInt16(buf.Data[i*chans+c], depth)
			}
			dst[i] = int16(sum / chans)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return frames, err
	}
	return newReader(rate, o, fill, nil), nil
}

func toInt16(v, depth int) int {
	switch depth {
	case 8:
		// 8-bit WAV is unsigned.
		return (v - 128) << 8
	case 24:
		return v >> 8
	case 32:
		return v >> 16
	}
	return v
}
