package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDupIsIndependent(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	f := Voice(Slin8, 2, data)
	f.Delivery = time.Unix(10, 0)

	o := f.Dup()
	data[0] = 99

	got := o.Frame()
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Data)
	assert.Equal(t, Slin8, got.Format)
	assert.Equal(t, 2, got.Samples)
	assert.Equal(t, time.Unix(10, 0), got.Delivery)

	o.Release()
	assert.True(t, o.Released())
	assert.Nil(t, o.Data())
	o.Release()
	assert.Panics(t, func() { o.Frame() })
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Voice(Slin8, 2, make([]byte, 4)).Validate())
	assert.ErrorIs(t, Voice(Slin8, 3, make([]byte, 4)).Validate(), ErrInconsistent)
	assert.NoError(t, Voice(ULaw, 4, make([]byte, 4)).Validate())
	assert.ErrorIs(t, Voice(ALaw, 5, make([]byte, 4)).Validate(), ErrInconsistent)
	// G.729 byte length does not determine samples.
	assert.NoError(t, Voice(G729, 80, make([]byte, 10)).Validate())
}

func TestEmpty(t *testing.T) {
	assert.True(t, (&Frame{Kind: KindVoice, Format: Slin8}).Empty())
	assert.True(t, Voice(Slin8, 0, []byte{1, 2}).Empty())
	assert.False(t, Voice(Slin8, 1, []byte{1, 2}).Empty())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, 2, Slin16.BytesPerSample())
	assert.Equal(t, 1, ULaw.BytesPerSample())
	assert.Equal(t, 0, Opus.BytesPerSample())
	assert.Equal(t, 20*time.Millisecond, Slin8.Duration(160))
	assert.Equal(t, 20*time.Millisecond, Slin16.Duration(320))
	assert.True(t, Format{Codec: CodecULaw}.Equal(ULaw))
	assert.False(t, Slin8.Equal(Slin16))
	assert.Equal(t, "ulaw", ULaw.String())
	assert.Equal(t, "slin@16000", Slin16.String())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"slin", Slin8},
		{"slin16", Slin16},
		{"SLIN48", Slin48},
		{"slin@24000", Slin24},
		{"ulaw", ULaw},
		{"alaw", ALaw},
		{"opus", Opus},
		{"g729", G729},
		{"g722", G722},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "mp3", "slinx", "ulaw@abc", "unknown"} {
		_, err := ParseFormat(bad)
		assert.Error(t, err, bad)
	}
}

func TestSampleView(t *testing.T) {
	o := Slin(8000, []int16{1, -2, 32767, -32768})
	f := o.Frame()
	assert.Equal(t, 4, f.Samples)
	assert.Equal(t, int16(-2), SampleAt(f.Data, 1))
	assert.Equal(t, int16(-32768), SampleAt(f.Data, 3))

	PutSample(f.Data, 0, 300)
	dst := make([]int16, 8)
	n := Int16s(dst, f.Data)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int16{300, -2, 32767, -32768}, dst[:n])
}

func TestSwapBytes16(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	SwapBytes16(b)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03, 0x05}, b)
}
