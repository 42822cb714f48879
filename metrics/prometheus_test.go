package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/gather"
	"github.com/pidato/framing/regulate"
)

func TestGatherObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())
	g, err := gather.New(8000, gather.WithObserver(m.Gather()))
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Feed(frame.Voice(frame.Slin8, 100, make([]byte, 200)))
	require.NoError(t, err)
	_, err = g.Feed(frame.Voice(frame.ULaw, 160, make([]byte, 160)))
	assert.ErrorIs(t, err, gather.ErrDropped)

	dst := make([]int16, 80)
	g.Read(dst)
	g.Read(dst)

	assert.Equal(t, 100.0, testutil.ToFloat64(m.FedSamples))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReadRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShortReads))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ReadSamples))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatherDrops.WithLabelValues("ulaw")))
}

func TestRegulateObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r, err := regulate.New(160, 0, regulate.WithObserver(m.Regulate()), regulate.WithHeadroom(0))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Feed(frame.Voice(frame.ULaw, 160, make([]byte, 160))))
	require.NotNil(t, r.Read())
	require.NoError(t, r.Feed(frame.Voice(frame.ULaw, 100, make([]byte, 100))))
	err = r.Feed(frame.Voice(frame.ULaw, 100, make([]byte, 100)))
	assert.ErrorIs(t, err, regulate.ErrOverflow)
	require.NoError(t, r.Feed(frame.Voice(frame.ULaw, 60, make([]byte, 60))))
	require.NotNil(t, r.Read())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Chunks.WithLabelValues("zero_copy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Chunks.WithLabelValues("copy")))
	assert.Equal(t, 320.0, testutil.ToFloat64(m.EmittedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Drops.WithLabelValues(regulate.DropOverflow)))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.DroppedBytes.WithLabelValues(regulate.DropOverflow)))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.FedSamples.Add(42)

	path := filepath.Join(t.TempDir(), "framer.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "framer_gather_fed_samples_total 42"))

	assert.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), reg))
}

func TestUnregistered(t *testing.T) {
	m := New(nil)
	m.Gather().ObserveRebuild(frame.G722)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rebuilds.WithLabelValues("g722")))
}
