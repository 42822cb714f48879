// Package config loads the framer configuration from YAML.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/gather"
	"github.com/pidato/framing/pool"
	"github.com/pidato/framing/regulate"
	"github.com/pidato/framing/transport"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Regulator RegulatorConfig `yaml:"regulator"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// EngineConfig sets up the Gatherer side.
type EngineConfig struct {
	Rate        int `yaml:"rate"`
	Ptime       int `yaml:"ptime"` // milliseconds
	HoldSamples int `yaml:"hold_samples"`
}

type RegulatorConfig struct {
	Headroom int `yaml:"headroom"` // bytes
	VADUnit  int `yaml:"vad_unit"` // bytes
}

type TransportConfig struct {
	Ptime int    `yaml:"ptime"` // milliseconds, 0 for codec default
	SSRC  uint32 `yaml:"ssrc"`
	// PayloadTypes binds dynamic payload types to format names such as
	// "slin16" or "opus".
	PayloadTypes map[uint8]string `yaml:"payload_types"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	// Textfile receives a Prometheus text dump when the command ends.
	Textfile string `yaml:"textfile"`
}

// Default returns a configuration that passes Validate.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Rate:        8000,
			Ptime:       20,
			HoldSamples: gather.DefaultHoldSamples,
		},
		Regulator: RegulatorConfig{
			Headroom: regulate.DefaultHeadroom,
			VADUnit:  regulate.DefaultVADUnit,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if err := c.Regulator.Validate(); err != nil {
		return fmt.Errorf("regulator config: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (e *EngineConfig) Validate() error {
	if !pool.IsSupportedRate(e.Rate) {
		return fmt.Errorf("rate must be one of %v, got %d", pool.Rates, e.Rate)
	}
	if e.Ptime <= 0 || e.Ptime > 1000 {
		return fmt.Errorf("ptime must be between 1 and 1000 ms, got %d", e.Ptime)
	}
	if e.HoldSamples < 0 {
		return fmt.Errorf("hold_samples cannot be negative, got %d", e.HoldSamples)
	}
	return nil
}

// FrameSamples is the length of one engine read.
func (e *EngineConfig) FrameSamples() int {
	return e.Rate * e.Ptime / 1000
}

func (e *EngineConfig) GatherOptions() []gather.Option {
	return []gather.Option{gather.WithHoldSamples(e.HoldSamples)}
}

func (r *RegulatorConfig) Validate() error {
	if r.Headroom < 0 {
		return fmt.Errorf("headroom cannot be negative, got %d", r.Headroom)
	}
	if r.VADUnit <= 0 {
		return fmt.Errorf("vad_unit must be positive, got %d", r.VADUnit)
	}
	return nil
}

func (r *RegulatorConfig) Options() []regulate.Option {
	return []regulate.Option{
		regulate.WithHeadroom(r.Headroom),
		regulate.WithVADUnit(r.VADUnit),
	}
}

func (t *TransportConfig) Validate() error {
	if t.Ptime < 0 {
		return fmt.Errorf("ptime cannot be negative, got %d", t.Ptime)
	}
	for pt, name := range t.PayloadTypes {
		if pt < 96 || pt > 127 {
			return fmt.Errorf("payload type %d is not dynamic", pt)
		}
		if _, err := frame.ParseFormat(name); err != nil {
			return fmt.Errorf("payload type %d: %w", pt, err)
		}
	}
	return nil
}

// Types returns the static payload types plus the configured ones.
func (t *TransportConfig) Types() *transport.PayloadTypes {
	types := transport.NewPayloadTypes()
	for pt, name := range t.PayloadTypes {
		f, err := frame.ParseFormat(name)
		if err != nil {
			continue
		}
		types.Map(pt, f)
	}
	return types
}

func (l *LoggingConfig) Validate() error {
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", s)
	}
	return level, nil
}

// SetLevel overrides the configured level, e.g. from a command-line flag.
func (l *LoggingConfig) SetLevel(s string) error {
	if _, err := parseLevel(s); err != nil {
		return err
	}
	l.Level = s
	return nil
}

// Logger builds the logger and returns a closer for the output file, if any.
func (l *LoggingConfig) Logger() (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, nil, err
	}
	var out io.Writer
	var closer io.Closer = io.NopCloser(nil)
	switch l.Output {
	case "stderr", "":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}
	return NewLogger(out, level, l.Format), closer, nil
}

func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
