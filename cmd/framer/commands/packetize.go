package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/transcode"
	"github.com/pidato/framing/transport"
)

var (
	packetizeCodec string
	packetizePtime int
)

var packetizeCmd = &cobra.Command{
	Use:   "packetize IN OUT",
	Short: "Encode a file and pace it into RTP packets written as a dump",
	Long: `Encode a file and pace it into RTP packets.

Each packet is written to OUT as a 2-byte big-endian length followed by the
packet. Codecs without a static payload type, such as opus, need one in
transport.payload_types.`,
	Args: cobra.ExactArgs(2),
	RunE: run(runPacketize),
}

func init() {
	packetizeCmd.Flags().StringVar(&packetizeCodec, "codec", "ulaw", "payload format (ulaw, alaw, opus, slin16, ...)")
	packetizeCmd.Flags().IntVar(&packetizePtime, "ptime", 0, "packet duration in milliseconds (default transport.ptime, then codec default)")
}

func runPacketize(e *env, args []string) error {
	codec, err := frame.ParseFormat(packetizeCodec)
	if err != nil {
		return err
	}
	rate := e.cfg.Engine.Rate
	ptime := packetizePtime
	if ptime == 0 {
		ptime = e.cfg.Transport.Ptime
	}

	sess, err := e.codecs.Open(frame.Linear(rate), codec)
	if err != nil {
		return fmt.Errorf("--codec %s: %w", codec, err)
	}
	defer sess.Close()

	src, err := e.open(args[0], e.cfg.Engine.Ptime)
	if err != nil {
		return err
	}
	defer src.Close()

	g, err := e.gatherer(rate)
	if err != nil {
		return err
	}
	defer g.Close()

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close()

	dw := transport.NewDumpWriter(out)
	snd := transport.NewSender(dw, e.senderOptions(ptime)...)
	buf, release := readBuffer(rate, e.cfg.Engine.Ptime)
	defer release()
	err = pump(src, g, buf, func(pcm []int16) error {
		return encode(sess, snd, rate, pcm)
	})
	err = errors.Join(err, snd.Close(), dw.Flush())
	if err != nil {
		return err
	}
	e.log.Info("framer: packetized",
		"in", args[0],
		"out", args[1],
		"codec", codec.String(),
		"packets", dw.Packets(),
	)
	return nil
}

// encode converts one linear read and sends whatever the encoder produced.
func encode(sess transcode.Session, snd *transport.Sender, rate int, pcm []int16) error {
	o := frame.Slin(rate, pcm)
	defer o.Release()
	frames, err := sess.Convert(o.Frame())
	for _, f := range frames {
		if err == nil {
			err = snd.Send(f.Frame())
		}
		f.Release()
	}
	return err
}
