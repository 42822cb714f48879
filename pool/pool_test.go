package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSizeOf(t *testing.T) {
	tests := []struct {
		rate, ptime, want int
	}{
		{8000, 20, 160},
		{8000, 10, 80},
		{16000, 20, 320},
		{48000, 20, 960},
		{12000, 5, 60},
		{8000, 7, 0},
		{11025, 20, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameSizeOf(tt.rate, tt.ptime), "rate=%d ptime=%d", tt.rate, tt.ptime)
	}
}

func TestOf(t *testing.T) {
	p, err := Of(16000, 20)
	require.NoError(t, err)
	assert.Equal(t, 320, p.FrameSize)
	assert.Equal(t, 640, p.Bytes())

	b := p.Get()
	assert.Len(t, b, 640)
	p.Release(b)

	_, err = Of(44100, 20)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestIsSupportedRate(t *testing.T) {
	assert.True(t, IsSupportedRate(8000))
	assert.True(t, IsSupportedRate(48000))
	assert.False(t, IsSupportedRate(44100))
	assert.False(t, IsSupportedRate(0))
}

func TestPCMPool(t *testing.T) {
	p, err := Of(8000, 10)
	require.NoError(t, err)
	pcm := p.PCM.Get()
	assert.Len(t, pcm, 80)
	p.PCM.Release(pcm[:10])
	assert.Len(t, p.PCM.Get(), 80)
}

func TestGetPut(t *testing.T) {
	b := Get(37)
	assert.Len(t, b, 37)
	Put(b)
	Put(nil)
}
