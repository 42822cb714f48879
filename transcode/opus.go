package transcode

import "fmt"

// OpusTOC is the first byte of an Opus packet: a 5-bit configuration, a
// stereo flag and a 2-bit frame count code.
type OpusTOC byte

func (t OpusTOC) Config() int  { return int(t >> 3) }
func (t OpusTOC) Stereo() bool { return t&0x04 != 0 }
func (t OpusTOC) Code() int    { return int(t & 0x03) }

// FrameSamples is the length of one frame in 48kHz samples.
func (t OpusTOC) FrameSamples() int {
	c := t.Config()
	switch {
	case c < 12:
		return [4]int{480, 960, 1920, 2880}[c%4]
	case c < 16:
		return [2]int{480, 960}[c%2]
	default:
		return [4]int{120, 240, 480, 960}[c%4]
	}
}

// OpusSamples returns the number of 48kHz samples an Opus packet decodes to.
func OpusSamples(packet []byte) (int, error) {
	if len(packet) == 0 {
		return 0, fmt.Errorf("%w: empty opus packet", ErrCorrupted)
	}
	toc := OpusTOC(packet[0])
	frames := 1
	switch toc.Code() {
	case 1, 2:
		frames = 2
	case 3:
		if len(packet) < 2 {
			return 0, fmt.Errorf("%w: opus code 3 without frame count", ErrCorrupted)
		}
		frames = int(packet[1] & 0x3f)
		if frames == 0 {
			return 0, fmt.Errorf("%w: opus packet with zero frames", ErrCorrupted)
		}
	}
	n := frames * toc.FrameSamples()
	if n > opusMaxFrame {
		return 0, fmt.Errorf("%w: opus packet of %d samples", ErrCorrupted, n)
	}
	return n, nil
}
