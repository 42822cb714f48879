package transcode

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

type soxr struct {
	rs resampling.Resampler
	in []float64
}

// NewResampler returns a high quality mono resampler from srcRate to dstRate.
func NewResampler(srcRate, dstRate int) (Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("transcode: resample %d -> %d: %w", srcRate, dstRate, ErrNoRoute)
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("transcode: create resampler: %w", err)
	}
	return &soxr{rs: rs}, nil
}

func (s *soxr) Process(pcm []int16) ([]int16, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	s.in = s.in[:0]
	for _, v := range pcm {
		s.in = append(s.in, float64(v)/pcmScale)
	}
	out, err := s.rs.Process(s.in)
	if err != nil {
		return nil, fmt.Errorf("transcode: resample: %w", err)
	}
	res := make([]int16, len(out))
	for i, v := range out {
		res[i] = toPCM(v)
	}
	return res, nil
}

// pcmScale maps int16 samples onto [-1, 1) and back without gain change.
const pcmScale = 32768.0

func toPCM(v float64) int16 {
	x := v * pcmScale
	switch {
	case x >= 32767:
		return 32767
	case x <= -32768:
		return -32768
	}
	return int16(x)
}
