package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidato/framing/frame"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 160, cfg.Engine.FrameSamples())
	assert.Len(t, cfg.Regulator.Options(), 2)
	assert.Len(t, cfg.Engine.GatherOptions(), 1)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framer.yaml")
	data := []byte(`
engine:
  rate: 16000
  ptime: 10
transport:
  ptime: 30
  ssrc: 1234
  payload_types:
    96: slin16
    111: opus
logging:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, cfg.Engine.Rate)
	assert.Equal(t, 160, cfg.Engine.FrameSamples())
	assert.Equal(t, 1280, cfg.Engine.HoldSamples, "unset fields keep defaults")
	assert.Equal(t, uint32(1234), cfg.Transport.SSRC)

	types := cfg.Transport.Types()
	f, ok := types.Format(96)
	assert.True(t, ok)
	assert.Equal(t, frame.Slin16, f)
	pt, ok := types.PayloadType(frame.Opus)
	assert.True(t, ok)
	assert.Equal(t, uint8(111), pt)
	pt, _ = types.PayloadType(frame.ULaw)
	assert.Equal(t, uint8(0), pt)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unsupported rate", "engine: {rate: 11025}"},
		{"zero ptime", "engine: {ptime: 0}"},
		{"negative hold", "engine: {hold_samples: -1}"},
		{"negative headroom", "regulator: {headroom: -1}"},
		{"zero vad unit", "regulator: {vad_unit: 0}"},
		{"static payload type", "transport: {payload_types: {8: slin16}}"},
		{"unknown format", "transport: {payload_types: {97: speex}}"},
		{"bad level", "logging: {level: loud}"},
		{"bad format", "logging: {format: xml}"},
		{"not yaml", "engine: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLogger(t *testing.T) {
	l := LoggingConfig{Level: "info"}
	require.NoError(t, l.SetLevel("warn"))
	assert.Error(t, l.SetLevel("chatty"))
	assert.Equal(t, "warn", l.Level)

	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelWarn, "json")
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	l.Output = filepath.Join(t.TempDir(), "framer.log")
	logger, closer, err := l.Logger()
	require.NoError(t, err)
	logger.Warn("to file")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(l.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
