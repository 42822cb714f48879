// Package gather normalizes frames of any format into one linear rate and
// serves exact-length sample reads.
//
// A Gatherer is not safe for concurrent use. Its owner serializes access.
package gather

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/pool"
	"github.com/pidato/framing/queue"
	"github.com/pidato/framing/transcode"
)

var (
	ErrUnsupportedRate = errors.New("gather: unsupported rate")
	ErrDropped         = errors.New("gather: frame dropped")
	ErrClosed          = errors.New("gather: closed")
)

// DefaultHoldSamples is the hold buffer capacity in samples.
const DefaultHoldSamples = 1280

// Observer receives accounting events. Implementations must be cheap; they
// run inline with Feed and Read.
type Observer interface {
	ObserveFeed(samples int)
	ObserveRead(requested, written int)
	ObserveDrop(src frame.Format)
	ObserveRebuild(src frame.Format)
}

type nopObserver struct{}

func (nopObserver) ObserveFeed(int)             {}
func (nopObserver) ObserveRead(int, int)        {}
func (nopObserver) ObserveDrop(frame.Format)    {}
func (nopObserver) ObserveRebuild(frame.Format) {}

type Option func(*Gatherer)

// WithConverter sets the capability used for frames not already in the
// target format. Without one, such frames are dropped.
func WithConverter(c transcode.Converter) Option {
	return func(g *Gatherer) {
		g.conv = c
	}
}

func WithHoldSamples(n int) Option {
	return func(g *Gatherer) {
		if n > 0 {
			g.holdCap = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gatherer) {
		if l != nil {
			g.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(g *Gatherer) {
		if o != nil {
			g.obs = o
		}
	}
}

// Gatherer queues owned linear frames and a hold remainder.
//
// size always equals the samples left in queued frames plus the hold length.
// A remainder too large for the hold buffer stays at the queue head with
// headOff marking how much of it was consumed.
type Gatherer struct {
	target frame.Format
	conv   transcode.Converter
	sess   transcode.Session

	frames  queue.Ring[*frame.Owned]
	headOff int // samples consumed from the head frame

	hold    []byte
	holdCap int
	holdOff int
	holdLen int

	size   int
	closed bool

	log *slog.Logger
	obs Observer
}

// New returns a Gatherer producing signed linear audio at rate.
func New(rate int, opts ...Option) (*Gatherer, error) {
	if !pool.IsSupportedRate(rate) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRate, rate)
	}
	g := &Gatherer{
		target:  frame.Linear(rate),
		holdCap: DefaultHoldSamples,
		log:     slog.Default(),
		obs:     nopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.hold = pool.Get(g.holdCap * 2)
	return g, nil
}

// Target is the output format.
func (g *Gatherer) Target() frame.Format {
	return g.target
}

// Available returns the buffered sample count.
func (g *Gatherer) Available() int {
	return g.size
}

// Queued returns the number of frames in the queue.
func (g *Gatherer) Queued() int {
	return g.frames.Len()
}

// Feed takes a copy of f, converting it to the target format when needed,
// and returns the queue depth seen before the call. Frames with no media are
// ignored. A frame that cannot be converted is reported with ErrDropped and
// leaves the Gatherer unchanged.
func (g *Gatherer) Feed(f *frame.Frame) (int, error) {
	depth := g.frames.Len()
	if g.closed {
		return depth, ErrClosed
	}
	if f == nil || f.Kind != frame.KindVoice || f.Empty() {
		return depth, nil
	}

	if f.Format.Equal(g.target) {
		if err := f.Validate(); err != nil {
			return depth, err
		}
		g.closeSession()
		g.push(f.Dup())
		return depth, nil
	}

	if g.sess == nil || !g.sess.Src().Equal(f.Format) {
		sess, err := g.open(f.Format)
		if err != nil {
			g.log.Warn("gather: dropping frame",
				"src", f.Format.String(),
				"target", g.target.String(),
				"err", err,
			)
			g.obs.ObserveDrop(f.Format)
			return depth, fmt.Errorf("%w: %w", ErrDropped, err)
		}
		g.closeSession()
		g.sess = sess
		g.obs.ObserveRebuild(f.Format)
		g.log.Debug("gather: converter session rebuilt", "src", f.Format.String(), "target", g.target.String())
	}

	out, err := g.sess.Convert(f)
	if err != nil {
		for _, o := range out {
			o.Release()
		}
		g.log.Warn("gather: conversion failed", "src", f.Format.String(), "err", err)
		g.obs.ObserveDrop(f.Format)
		return depth, fmt.Errorf("%w: %w", ErrDropped, err)
	}
	for _, o := range out {
		g.push(o)
	}
	return depth, nil
}

func (g *Gatherer) open(src frame.Format) (transcode.Session, error) {
	if g.conv == nil {
		return nil, fmt.Errorf("%w: %s -> %s", transcode.ErrNoRoute, src, g.target)
	}
	return g.conv.Open(src, g.target)
}

func (g *Gatherer) push(o *frame.Owned) {
	n := o.Len() / 2
	if n == 0 {
		o.Release()
		return
	}
	g.frames.PushBack(o)
	g.size += n
	g.obs.ObserveFeed(n)
}

// Read fills dst with buffered samples, oldest first, and returns how many
// were written. A short count means the Gatherer ran dry.
func (g *Gatherer) Read(dst []int16) int {
	if len(dst) == 0 || g.closed {
		return 0
	}
	n := 0
	if g.holdLen > 0 {
		k := min(len(dst), g.holdLen)
		off := g.holdOff * 2
		frame.Int16s(dst[:k], g.hold[off:off+k*2])
		g.holdOff += k
		g.holdLen -= k
		if g.holdLen == 0 {
			g.holdOff = 0
		}
		n = k
	}

	for n < len(dst) {
		o, ok := g.frames.Front()
		if !ok {
			break
		}
		data := o.Data()[g.headOff*2:]
		avail := len(data) / 2
		want := len(dst) - n
		if avail <= want {
			frame.Int16s(dst[n:n+avail], data)
			n += avail
			g.popHead()
			continue
		}

		frame.Int16s(dst[n:], data[:want*2])
		n += want
		rest := avail - want
		if rest <= g.holdCap {
			copy(g.hold, data[want*2:])
			g.holdOff = 0
			g.holdLen = rest
			g.popHead()
		} else {
			g.headOff += want
		}
	}

	g.size -= n
	g.obs.ObserveRead(len(dst), n)
	return n
}

func (g *Gatherer) popHead() {
	o, _ := g.frames.PopFront()
	o.Release()
	g.headOff = 0
}

// Flush drops everything buffered and closes the converter session, so the
// next Feed starts without converter history.
func (g *Gatherer) Flush() {
	g.closeSession()
	for g.frames.Len() > 0 {
		g.popHead()
	}
	g.frames.Reset()
	g.holdOff = 0
	g.holdLen = 0
	g.size = 0
}

// Close flushes, closes the converter session and frees the hold buffer.
func (g *Gatherer) Close() error {
	if g.closed {
		return nil
	}
	err := g.closeSession()
	g.Flush()
	pool.Put(g.hold)
	g.hold = nil
	g.closed = true
	return err
}

func (g *Gatherer) closeSession() error {
	if g.sess == nil {
		return nil
	}
	err := g.sess.Close()
	g.sess = nil
	return err
}
