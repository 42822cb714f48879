package commands

import (
	"errors"
	"io"

	"github.com/pidato/framing/audiofile"
	"github.com/pidato/framing/gather"
	"github.com/pidato/framing/pool"
	"github.com/pidato/framing/regulate"
	"github.com/pidato/framing/transport"
)

func (e *env) rate(flag int) int {
	if flag > 0 {
		return flag
	}
	return e.cfg.Engine.Rate
}

func (e *env) ptime(flag int) int {
	if flag > 0 {
		return flag
	}
	return e.cfg.Engine.Ptime
}

func (e *env) open(path string, ptime int) (*audiofile.Reader, error) {
	return audiofile.Open(path, audiofile.WithPtime(ptime), audiofile.WithLogger(e.log))
}

// gatherer returns a Gatherer at rate using the shared codecs and metrics.
func (e *env) gatherer(rate int) (*gather.Gatherer, error) {
	opts := append(e.cfg.Engine.GatherOptions(),
		gather.WithConverter(e.codecs),
		gather.WithLogger(e.log),
		gather.WithObserver(e.metrics.Gather()),
	)
	return gather.New(rate, opts...)
}

func (e *env) senderOptions(ptime int) []transport.Option {
	regOpts := append(e.cfg.Regulator.Options(),
		regulate.WithObserver(e.metrics.Regulate()),
		regulate.WithLogger(e.log),
	)
	return []transport.Option{
		transport.WithPtime(ptime),
		transport.WithPayloadTypes(e.cfg.Transport.Types()),
		transport.WithSSRC(e.cfg.Transport.SSRC),
		transport.WithLogger(e.log),
		transport.WithRegulateOptions(regOpts...),
	}
}

// readBuffer returns a buffer for reads of ptime at rate, pooled when the
// pair has a pool, and the func that gives it back.
func readBuffer(rate, ptime int) ([]int16, func()) {
	if p, err := pool.Of(rate, ptime); err == nil {
		buf := p.PCM.Get()
		return buf, func() { p.PCM.Release(buf) }
	}
	return make([]int16, max(rate*ptime/1000, 1)), func() {}
}

// pump feeds every frame of src into g, then hands each full read of len(buf)
// samples to sink. The short remainder is handed over at the end. Frames the
// Gatherer drops are skipped.
func pump(src audiofile.Source, g *gather.Gatherer, buf []int16, sink func([]int16) error) error {
	drain := func(final bool) error {
		for g.Available() >= len(buf) || final && g.Available() > 0 {
			n := g.Read(buf)
			if err := sink(buf[:n]); err != nil {
				return err
			}
		}
		return nil
	}
	for {
		f, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			return drain(true)
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
		if err := drain(false); err != nil {
			return err
		}
	}
}
