package commands

import (
	"github.com/spf13/cobra"

	"github.com/pidato/framing/audiofile"
)

var (
	convertRate  int
	convertPtime int
)

var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Decode a WAV or MP3 file and record it as mono WAV at the engine rate",
	Args:  cobra.ExactArgs(2),
	RunE:  run(runConvert),
}

func init() {
	convertCmd.Flags().IntVar(&convertRate, "rate", 0, "output sample rate (default engine.rate)")
	convertCmd.Flags().IntVar(&convertPtime, "ptime", 0, "read size in milliseconds (default engine.ptime)")
}

func runConvert(e *env, args []string) error {
	rate, ptime := e.rate(convertRate), e.ptime(convertPtime)

	src, err := e.open(args[0], ptime)
	if err != nil {
		return err
	}
	defer src.Close()

	g, err := e.gatherer(rate)
	if err != nil {
		return err
	}
	defer g.Close()

	rec, err := audiofile.Create(args[1], rate)
	if err != nil {
		return err
	}
	buf, release := readBuffer(rate, ptime)
	defer release()
	err = pump(src, g, buf, rec.WriteSamples)
	if cerr := rec.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	e.log.Info("framer: converted",
		"in", args[0],
		"from", src.Format().String(),
		"out", args[1],
		"to", rec.Format().String(),
		"samples", rec.Samples(),
	)
	return nil
}
