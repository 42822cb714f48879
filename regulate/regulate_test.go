package regulate

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidato/framing/frame"
)

func slin(n int, fill byte) *frame.Frame {
	return frame.Voice(frame.Slin8, n/2, bytes.Repeat([]byte{fill}, n))
}

func g729(n int) *frame.Frame {
	return frame.Voice(frame.G729, n*8, bytes.Repeat([]byte{byte(n)}, n))
}

type recorder struct {
	emitted  []int
	zeroCopy int
	drops    map[string]int
}

func (r *recorder) ObserveEmit(n int, zc bool) {
	r.emitted = append(r.emitted, n)
	if zc {
		r.zeroCopy++
	}
}

func (r *recorder) ObserveDrop(reason string, n int) {
	if r.drops == nil {
		r.drops = map[string]int{}
	}
	r.drops[reason] += n
}

func TestNew(t *testing.T) {
	_, err := New(0, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	r, err := New(160, FlagVAD)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 160, r.ChunkSize())
	assert.Equal(t, 160+DefaultHeadroom, r.Cap())
	assert.True(t, r.TestFlag(FlagVAD))
	assert.False(t, r.TestFlag(FlagVAD|FlagBigEndian))

	r.SetFlags(FlagBigEndian)
	assert.Equal(t, FlagBigEndian, r.Flags())
}

// One 160-byte frame passes through untouched, two 80-byte frames are joined.
func TestFastPathThenJoin(t *testing.T) {
	obs := &recorder{}
	r, err := New(160, 0, WithObserver(obs))
	require.NoError(t, err)
	defer r.Close()

	in := slin(160, 1)
	require.NoError(t, r.Feed(in))
	assert.Equal(t, 160, r.Len())
	out := r.Read()
	assert.Same(t, in, out)
	assert.Nil(t, r.Read())

	require.NoError(t, r.Feed(slin(80, 2)))
	require.NoError(t, r.Feed(slin(80, 3)))
	out = r.Read()
	require.NotNil(t, out)
	assert.Equal(t, 160, out.Len())
	assert.Equal(t, 80, out.Samples)
	assert.Equal(t, frame.Slin8, out.Format)
	assert.Equal(t, append(bytes.Repeat([]byte{2}, 80), bytes.Repeat([]byte{3}, 80)...), out.Data)
	assert.Nil(t, r.Read())

	assert.Equal(t, []int{160, 160}, obs.emitted)
	assert.Equal(t, 1, obs.zeroCopy)
}

func TestExactChunking(t *testing.T) {
	r, err := New(160, 0)
	require.NoError(t, err)
	defer r.Close()

	// 3 x 160 = 480 bytes in uneven pieces.
	var all []byte
	for i, n := range []int{100, 30, 50, 120, 60, 20, 100} {
		f := slin(n, byte(i+1))
		all = append(all, f.Data...)
		require.NoError(t, r.Feed(f))
	}
	require.Len(t, all, 480)

	var got []byte
	for i := 0; i < 3; i++ {
		out := r.Read()
		require.NotNil(t, out, "chunk %d", i)
		require.Equal(t, 160, out.Len())
		got = append(got, out.Data...)
	}
	assert.Nil(t, r.Read())
	assert.Equal(t, all, got)
	assert.Equal(t, 0, r.Len())
}

func TestFormatLock(t *testing.T) {
	r, err := New(160, 0)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Feed(slin(80, 1)))
	err = r.Feed(frame.Voice(frame.ULaw, 80, make([]byte, 80)))
	assert.ErrorIs(t, err, ErrFormatMismatch)
	err = r.Feed(frame.Voice(frame.Slin16, 40, make([]byte, 80)))
	assert.ErrorIs(t, err, ErrFormatMismatch)

	r.Reset()
	_, locked := r.Format()
	assert.False(t, locked)
	assert.Equal(t, 0, r.Len())
	require.NoError(t, r.Feed(frame.Voice(frame.ULaw, 80, make([]byte, 80))))
	f, locked := r.Format()
	assert.True(t, locked)
	assert.Equal(t, frame.ULaw, f)
}

func TestWrongKind(t *testing.T) {
	r, err := New(160, 0)
	require.NoError(t, err)
	defer r.Close()

	assert.ErrorIs(t, r.Feed(nil), ErrWrongKind)
	err = r.Feed(&frame.Frame{Kind: frame.KindControl, Format: frame.Slin8, Data: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrWrongKind)
	_, locked := r.Format()
	assert.False(t, locked)
}

func TestOverflow(t *testing.T) {
	obs := &recorder{}
	r, err := New(4, 0, WithHeadroom(4), WithObserver(obs))
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 8, r.Cap())

	require.NoError(t, r.Feed(slin(6, 1)))
	assert.ErrorIs(t, r.Feed(slin(6, 2)), ErrOverflow)
	assert.Equal(t, 6, r.Len())
	assert.Equal(t, 6, obs.drops[DropOverflow])

	require.NoError(t, r.Feed(slin(2, 3)))
	assert.Equal(t, []byte{1, 1, 1, 1}, r.Read().Data)
	assert.Equal(t, []byte{1, 1, 3, 3}, r.Read().Data)
	assert.Nil(t, r.Read())
}

func TestDeliveryAdvances(t *testing.T) {
	r, err := New(160, 0)
	require.NoError(t, err)
	defer r.Close()

	t0 := time.Unix(1000, 0)
	f1 := slin(100, 1)
	f1.Delivery = t0
	f2 := slin(100, 2)
	f2.Delivery = t0.Add(time.Hour)
	require.NoError(t, r.Feed(f1))
	require.NoError(t, r.Feed(f2))

	out := r.Read()
	require.NotNil(t, out)
	assert.Equal(t, t0, out.Delivery)

	f3 := slin(120, 3)
	f3.Delivery = t0.Add(2 * time.Hour)
	require.NoError(t, r.Feed(f3))
	out = r.Read()
	require.NotNil(t, out)
	// 160 bytes of slin at 8kHz is 10ms.
	assert.Equal(t, t0.Add(10*time.Millisecond), out.Delivery)

	// An empty buffer takes the next frame's time.
	assert.Nil(t, r.Read())
	r.Read()
	r.Reset()
	f4 := slin(160, 4)
	f4.Delivery = t0.Add(3 * time.Hour)
	require.NoError(t, r.Feed(slin(2, 0)))
	require.NoError(t, r.Feed(f4))
	out = r.Read()
	require.NotNil(t, out)
	assert.Equal(t, t0.Add(3*time.Hour), out.Delivery)
}

func TestVADShortFrame(t *testing.T) {
	r, err := New(20, FlagVAD)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Feed(g729(10)))
	assert.Nil(t, r.Read())

	require.NoError(t, r.Feed(g729(2)))
	out := r.Read()
	require.NotNil(t, out)
	assert.Equal(t, 12, out.Len())
	assert.Equal(t, 96, out.Samples)
	assert.Equal(t, frame.G729, out.Format)
	assert.Nil(t, r.Read())
}

func TestVADSkipsFastPath(t *testing.T) {
	r, err := New(20, FlagVAD)
	require.NoError(t, err)
	defer r.Close()

	in := g729(20)
	require.NoError(t, r.Feed(in))
	out := r.Read()
	require.NotNil(t, out)
	assert.NotSame(t, in, out)
	assert.Equal(t, in.Data, out.Data)
}

func TestVADRedundantFrame(t *testing.T) {
	t.Run("dropped", func(t *testing.T) {
		obs := &recorder{}
		r, err := New(20, FlagVAD, WithObserver(obs))
		require.NoError(t, err)
		defer r.Close()

		require.NoError(t, r.Feed(g729(10)))
		require.NoError(t, r.Feed(g729(2)))
		require.NoError(t, r.Feed(g729(10)))
		assert.Equal(t, 12, r.Len())
		assert.Equal(t, 10, obs.drops[DropRedundant])

		out := r.Read()
		require.NotNil(t, out)
		assert.Equal(t, 12, out.Len())
		assert.Nil(t, r.Read())
	})

	t.Run("kept", func(t *testing.T) {
		r, err := New(20, FlagVAD|FlagKeepRedundant)
		require.NoError(t, err)
		defer r.Close()

		require.NoError(t, r.Feed(g729(10)))
		require.NoError(t, r.Feed(g729(2)))
		require.NoError(t, r.Feed(g729(10)))
		assert.Equal(t, 22, r.Len())

		out := r.Read()
		require.NotNil(t, out)
		assert.Equal(t, 20, out.Len())
		out = r.Read()
		require.NotNil(t, out)
		assert.Equal(t, 2, out.Len())
		assert.Nil(t, r.Read())
	})
}

func TestBigEndianFeed(t *testing.T) {
	r, err := New(4, FlagBigEndian)
	require.NoError(t, err)
	defer r.Close()

	in := frame.Voice(frame.Slin8, 2, []byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, r.Feed(in))
	out := r.Read()
	require.NotNil(t, out)
	assert.NotSame(t, in, out)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, out.Data)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, in.Data)

	// Non-linear payloads are never swapped.
	r.Reset()
	require.NoError(t, r.Feed(frame.Voice(frame.ULaw, 4, []byte{1, 2, 3, 4})))
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Read().Data)
}

func TestResync(t *testing.T) {
	run := func(flags Flags) (*Regularizer, *recorder, *frame.Frame) {
		obs := &recorder{}
		r, err := New(4, flags, WithObserver(obs))
		require.NoError(t, err)
		require.NoError(t, r.Feed(slin(2, 9)))
		for i := 0; i < resyncAfter; i++ {
			require.NoError(t, r.Feed(slin(4, byte(i))))
			require.NotNil(t, r.Read())
			require.Equal(t, 2, r.Len())
		}
		last := slin(4, 0xee)
		require.NoError(t, r.Feed(last))
		return r, obs, last
	}

	r, obs, last := run(FlagResync)
	assert.Equal(t, 2, obs.drops[DropResync])
	assert.Same(t, last, r.Read())
	assert.Equal(t, 0, r.Len())
	r.Close()

	r, obs, last = run(0)
	assert.Zero(t, obs.drops[DropResync])
	out := r.Read()
	assert.NotSame(t, last, out)
	assert.Equal(t, 2, r.Len())
	r.Close()
}

func TestReconfigure(t *testing.T) {
	r, err := New(160, 0)
	require.NoError(t, err)
	defer r.Close()

	a := slin(160, 1)
	require.NoError(t, r.Feed(a))
	require.NoError(t, r.Feed(slin(40, 2)))
	require.NoError(t, r.Reconfigure(100))
	assert.Equal(t, 100, r.ChunkSize())
	assert.Equal(t, 200, r.Len())

	out := r.Read()
	require.NotNil(t, out)
	assert.Equal(t, bytes.Repeat([]byte{1}, 100), out.Data)
	out = r.Read()
	require.NotNil(t, out)
	assert.Equal(t, append(bytes.Repeat([]byte{1}, 60), bytes.Repeat([]byte{2}, 40)...), out.Data)
	assert.Nil(t, r.Read())

	assert.ErrorIs(t, r.Reconfigure(0), ErrInvalidSize)
	require.NoError(t, r.Reconfigure(100))

	// Shrinking keeps data that no longer fits the default capacity.
	big, err := New(100, 0, WithHeadroom(100))
	require.NoError(t, err)
	defer big.Close()
	require.NoError(t, big.Feed(slin(150, 5)))
	require.NoError(t, big.Reconfigure(10))
	assert.Equal(t, 150, big.Len())
}

func TestClose(t *testing.T) {
	r, err := New(4, 0)
	require.NoError(t, err)
	require.NoError(t, r.Feed(slin(4, 1)))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Feed(slin(4, 1)), ErrClosed)
	assert.Nil(t, r.Read())
	assert.ErrorIs(t, r.Reconfigure(8), ErrClosed)
}
