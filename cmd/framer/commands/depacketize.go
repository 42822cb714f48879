package commands

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pidato/framing/audiofile"
	"github.com/pidato/framing/gather"
	"github.com/pidato/framing/transport"
)

var depacketizeRate int

var depacketizeCmd = &cobra.Command{
	Use:   "depacketize IN OUT",
	Short: "Decode an RTP dump written by packetize back to WAV",
	Args:  cobra.ExactArgs(2),
	RunE:  run(runDepacketize),
}

func init() {
	depacketizeCmd.Flags().IntVar(&depacketizeRate, "rate", 0, "output sample rate (default engine.rate)")
}

func runDepacketize(e *env, args []string) error {
	rate := e.rate(depacketizeRate)

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	g, err := e.gatherer(rate)
	if err != nil {
		return err
	}
	defer g.Close()

	rec, err := audiofile.Create(args[1], rate)
	if err != nil {
		return err
	}
	dr := transport.NewDumpReader(in)
	recv := transport.NewReceiver(e.cfg.Transport.Types(), e.log)
	buf, release := readBuffer(rate, e.cfg.Engine.Ptime)
	defer release()

	err = func() error {
		for {
			p, err := dr.ReadRTP()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			f, err := recv.Receive(p)
			if errors.Is(err, transport.ErrDuplicate) {
				e.log.Debug("framer: skipping packet", "seq", p.SequenceNumber, "err", err)
				continue
			}
			if err != nil {
				return err
			}
			_, err = g.Feed(f)
			if errors.Is(err, gather.ErrDropped) {
				continue
			}
			if err != nil {
				return err
			}
			for g.Available() >= len(buf) {
				if err := rec.WriteSamples(buf[:g.Read(buf)]); err != nil {
					return err
				}
			}
		}
		n := g.Read(buf)
		return rec.WriteSamples(buf[:n])
	}()
	err = errors.Join(err, rec.Close())
	if err != nil {
		return err
	}
	st := recv.Stats()
	e.log.Info("framer: depacketized",
		"in", args[0],
		"out", args[1],
		"packets", st.Received,
		"duplicates", st.Duplicates,
		"lost", st.Lost,
		"samples", rec.Samples(),
	)
	return nil
}
