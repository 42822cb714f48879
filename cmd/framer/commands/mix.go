package commands

import (
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pidato/framing/audiofile"
	"github.com/pidato/framing/tap"
)

var (
	mixRate  int
	mixGainA int
	mixGainB int
	mixSync  bool
)

var mixCmd = &cobra.Command{
	Use:   "mix A B OUT",
	Short: "Mix two files into one WAV as the two directions of a call",
	Long: `Mix two files into one WAV as the two directions of a call.

A is fed as the read direction and B as the write direction, one frame of
each per engine ptime. Gains follow the audiohook convention: a positive
value multiplies, a negative value divides.`,
	Args: cobra.ExactArgs(3),
	RunE: run(runMix),
}

func init() {
	mixCmd.Flags().IntVar(&mixRate, "rate", 0, "output sample rate (default engine.rate)")
	mixCmd.Flags().IntVar(&mixGainA, "gain-a", 0, "volume adjustment for A")
	mixCmd.Flags().IntVar(&mixGainB, "gain-b", 0, "volume adjustment for B")
	mixCmd.Flags().BoolVar(&mixSync, "sync", false, "flush both sides when one runs ahead")
}

// mixClock advances one ptime per round so the tap sees real-time pacing.
type mixClock struct {
	now time.Time
}

func (c *mixClock) Now() time.Time { return c.now }

func runMix(e *env, args []string) error {
	rate, ptime := e.rate(mixRate), e.cfg.Engine.Ptime
	step := time.Duration(ptime) * time.Millisecond

	var flags tap.Flags
	if mixSync {
		flags |= tap.FlagSync
	}
	clock := &mixClock{now: time.Now()}
	t, err := tap.New(rate,
		tap.WithConverter(e.codecs),
		tap.WithFlags(flags),
		tap.WithLogger(e.log),
		tap.WithClock(clock.Now),
	)
	if err != nil {
		return err
	}
	defer t.Close()
	if err := t.SetVolume(tap.DirRead, mixGainA); err != nil {
		return err
	}
	if err := t.SetVolume(tap.DirWrite, mixGainB); err != nil {
		return err
	}

	var srcs [2]*audiofile.Reader
	for i := range srcs {
		src, err := e.open(args[i], ptime)
		if err != nil {
			return err
		}
		defer src.Close()
		srcs[i] = src
	}

	rec, err := audiofile.Create(args[2], rate)
	if err != nil {
		return err
	}
	samples := rate * ptime / 1000
	drain := func() error {
		for {
			o, err := t.Read(tap.DirBoth, samples)
			if err != nil || o == nil {
				return err
			}
			err = rec.Write(o.Frame())
			o.Release()
			if err != nil {
				return err
			}
		}
	}

	err = func() error {
		dirs := [2]tap.Direction{tap.DirRead, tap.DirWrite}
		done := [2]bool{}
		for !done[0] || !done[1] {
			for i, src := range srcs {
				if done[i] {
					continue
				}
				f, err := src.ReadFrame()
				if errors.Is(err, io.EOF) {
					done[i] = true
					continue
				}
				if err != nil {
					return err
				}
				if err := t.Write(dirs[i], f); err != nil {
					return err
				}
			}
			clock.now = clock.now.Add(step)
			if err := drain(); err != nil {
				return err
			}
		}
		// Let the wait for a silent side run out.
		clock.now = clock.now.Add(2 * step)
		return drain()
	}()
	err = errors.Join(err, rec.Close())
	if err != nil {
		return err
	}
	e.log.Info("framer: mixed",
		"a", args[0],
		"b", args[1],
		"out", args[2],
		"samples", rec.Samples(),
	)
	return nil
}
