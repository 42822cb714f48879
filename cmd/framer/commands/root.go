package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pidato/framing/config"
	"github.com/pidato/framing/metrics"
	"github.com/pidato/framing/transcode"
)

var (
	// Global flags
	configPath  string
	logLevel    string
	metricsPath string
)

var rootCmd = &cobra.Command{
	Use:   "framer",
	Short: "Gather, regularize and packetize audio frames",
	Long: `framer - drive the frame engine over files.

Input files are WAV or MP3. Frames are normalized by a Gatherer to one
linear rate, then either recorded, transcoded and paced into RTP packets,
or mixed with a second stream.

Examples:
  framer convert call.mp3 call-16k.wav --rate 16000
  framer packetize call.wav call.rtp --codec ulaw --ptime 30
  framer depacketize call.rtp back.wav
  framer mix caller.wav callee.wav both.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsPath, "metrics", "", "write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(convertCmd, packetizeCmd, depacketizeCmd, mixCmd)
}

// env is what every command shares.
type env struct {
	cfg     *config.Config
	log     *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	codecs  *transcode.Registry

	logCloser io.Closer
}

func setup() (*env, error) {
	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if logLevel != "" {
		if err := cfg.Logging.SetLevel(logLevel); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}
	if metricsPath != "" {
		cfg.Metrics.Textfile = metricsPath
	}
	log, closer, err := cfg.Logging.Logger()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	return &env{
		cfg:       cfg,
		log:       log,
		reg:       reg,
		metrics:   metrics.New(reg),
		codecs:    transcode.NewBuiltin(transcode.WithLogger(log)),
		logCloser: closer,
	}, nil
}

// finish writes the metrics dump and closes the log output.
func (e *env) finish(runErr error) error {
	var errs []error
	if runErr != nil {
		e.log.Error("framer: command failed", "err", runErr)
		errs = append(errs, runErr)
	}
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, e.reg); err != nil {
			errs = append(errs, err)
		} else {
			e.log.Debug("framer: metrics written", "path", path)
		}
	}
	errs = append(errs, e.logCloser.Close())
	return errors.Join(errs...)
}

// run wraps a command body with setup and finish.
func run(fn func(e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		return e.finish(fn(e, args))
	}
}
