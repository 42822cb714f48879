package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the media kind of a frame.
type Kind uint8

const (
	KindNull Kind = iota
	KindVoice
	KindVideo
	KindControl
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindVoice:
		return "voice"
	case KindVideo:
		return "video"
	case KindControl:
		return "control"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Codec identifies a payload encoding.
type Codec uint8

const (
	CodecUnknown Codec = iota
	// CodecSlin is signed 16-bit little-endian linear PCM, mono.
	CodecSlin
	CodecULaw
	CodecALaw
	CodecG722
	CodecG729
	CodecOpus
)

var codecNames = map[Codec]string{
	CodecUnknown: "unknown",
	CodecSlin:    "slin",
	CodecULaw:    "ulaw",
	CodecALaw:    "alaw",
	CodecG722:    "g722",
	CodecG729:    "g729",
	CodecOpus:    "opus",
}

func (c Codec) String() string {
	if s, ok := codecNames[c]; ok {
		return s
	}
	return "codec(" + strconv.Itoa(int(c)) + ")"
}

// DefaultRate is the sample rate a codec runs at when Format.Rate is zero.
func (c Codec) DefaultRate() int {
	switch c {
	case CodecG722:
		return 16000
	case CodecOpus:
		return 48000
	}
	return 8000
}

// Format is a codec plus an optional sample rate.
type Format struct {
	Codec Codec
	Rate  int
}

var (
	Slin8  = Linear(8000)
	Slin12 = Linear(12000)
	Slin16 = Linear(16000)
	Slin24 = Linear(24000)
	Slin32 = Linear(32000)
	Slin48 = Linear(48000)
	ULaw   = Format{Codec: CodecULaw, Rate: 8000}
	ALaw   = Format{Codec: CodecALaw, Rate: 8000}
	G722   = Format{Codec: CodecG722, Rate: 16000}
	G729   = Format{Codec: CodecG729, Rate: 8000}
	Opus   = Format{Codec: CodecOpus, Rate: 48000}
)

// Linear returns the signed linear format at rate.
func Linear(rate int) Format {
	return Format{Codec: CodecSlin, Rate: rate}
}

// IsLinear reports whether f is signed linear PCM.
func (f Format) IsLinear() bool {
	return f.Codec == CodecSlin
}

// SampleRate returns Rate, or the codec default when Rate is zero.
func (f Format) SampleRate() int {
	if f.Rate > 0 {
		return f.Rate
	}
	return f.Codec.DefaultRate()
}

// BytesPerSample is 2 for slin and 1 for G.711. Other codecs return 0
// because their byte length does not map to a sample count.
func (f Format) BytesPerSample() int {
	switch f.Codec {
	case CodecSlin:
		return 2
	case CodecULaw, CodecALaw:
		return 1
	}
	return 0
}

// Duration returns the play time of samples at this format's rate.
func (f Format) Duration(samples int) time.Duration {
	rate := f.SampleRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// Equal compares two formats, treating a zero Rate as the codec default.
func (f Format) Equal(o Format) bool {
	return f.Codec == o.Codec && f.SampleRate() == o.SampleRate()
}

func (f Format) String() string {
	if f.Rate == 0 || f.Rate == f.Codec.DefaultRate() && !f.IsLinear() {
		return f.Codec.String()
	}
	return fmt.Sprintf("%s@%d", f.Codec, f.Rate)
}

// ParseFormat parses names such as "ulaw", "slin16", "slin@24000" or
// "opus".
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	name, rateStr, hasRate := strings.Cut(s, "@")
	if name == "slin" && !hasRate {
		return Slin8, nil
	}
	if strings.HasPrefix(name, "slin") && !hasRate && len(name) > 4 {
		khz, err := strconv.Atoi(name[4:])
		if err != nil {
			return Format{}, fmt.Errorf("frame: bad format %q", s)
		}
		return Linear(khz * 1000), nil
	}
	for c, n := range codecNames {
		if n != name || c == CodecUnknown {
			continue
		}
		f := Format{Codec: c, Rate: c.DefaultRate()}
		if hasRate {
			rate, err := strconv.Atoi(rateStr)
			if err != nil || rate <= 0 {
				return Format{}, fmt.Errorf("frame: bad rate in %q", s)
			}
			f.Rate = rate
		}
		return f, nil
	}
	return Format{}, fmt.Errorf("frame: unknown format %q", s)
}
