// Package tap copies the audio of a two-way media path, such as a call leg,
// for recording or spying. Audio heard from the peer goes in the read
// direction and audio sent to it in the write direction; each has its own
// Gatherer and both can be read back mixed.
package tap

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/gather"
	"github.com/pidato/framing/pool"
	"github.com/pidato/framing/transcode"
)

var ErrDirection = errors.New("tap: invalid direction")

type Direction int

const (
	DirRead Direction = iota
	DirWrite
	DirBoth
)

func (d Direction) String() string {
	switch d {
	case DirRead:
		return "read"
	case DirWrite:
		return "write"
	case DirBoth:
		return "both"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

type Flags uint32

const (
	// FlagSync flushes both sides when one runs SyncTolerance ahead.
	FlagSync Flags = 1 << iota
	// FlagSmallQueue flushes both sides when either holds more than
	// SmallQueue of audio.
	FlagSmallQueue
	FlagMuteRead
	FlagMuteWrite
)

const (
	SyncTolerance = 100 * time.Millisecond
	SmallQueue    = 80 * time.Millisecond
)

type Option func(*Tap)

func WithConverter(c transcode.Converter) Option {
	return func(t *Tap) { t.conv = c }
}

func WithFlags(f Flags) Option {
	return func(t *Tap) { t.flags = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tap) {
		if l != nil {
			t.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tap) {
		if now != nil {
			t.now = now
		}
	}
}

// Tap is safe for concurrent use.
type Tap struct {
	mu    sync.Mutex
	rate  int
	conv  transcode.Converter
	flags Flags
	sides [2]side

	now func() time.Time
	log *slog.Logger
}

type side struct {
	g      *gather.Gatherer
	last   time.Time
	volume int
}

// New returns a Tap producing linear audio at rate.
func New(rate int, opts ...Option) (*Tap, error) {
	t := &Tap{
		rate: rate,
		now:  time.Now,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	start := t.now()
	for i := range t.sides {
		t.sides[i].last = start
		g, err := gather.New(rate, gather.WithConverter(t.conv), gather.WithLogger(t.log))
		if err != nil {
			if i > 0 {
				t.sides[0].g.Close()
			}
			return nil, err
		}
		t.sides[i].g = g
	}
	return t, nil
}

func (t *Tap) Rate() int { return t.rate }

func (t *Tap) Flags() Flags {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flags
}

func (t *Tap) SetFlags(f Flags) {
	t.mu.Lock()
	t.flags = f
	t.mu.Unlock()
}

// SetVolume sets a gain for one direction or both. A positive v multiplies
// samples by v, a negative v divides them by -v and zero leaves them alone.
func (t *Tap) SetVolume(d Direction, v int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch d {
	case DirRead, DirWrite:
		t.sides[d].volume = v
	case DirBoth:
		t.sides[DirRead].volume = v
		t.sides[DirWrite].volume = v
	default:
		return ErrDirection
	}
	return nil
}

// Available returns the buffered samples of one direction.
func (t *Tap) Available(d Direction) int {
	if d != DirRead && d != DirWrite {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sides[d].g.Available()
}

func (t *Tap) ms(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(t.rate)
}

// Write adds a frame seen in direction d.
func (t *Tap) Write(d Direction, f *frame.Frame) error {
	if d != DirRead && d != DirWrite {
		return ErrDirection
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	ours, other := &t.sides[d], &t.sides[1-d]
	now := t.now()
	previous := ours.last
	ours.last = now

	ourSamples := ours.g.Available()
	otherSamples := other.g.Available()
	if t.flags&FlagSync != 0 && otherSamples > 0 {
		ahead := now.Sub(previous) + t.ms(ourSamples) - t.ms(otherSamples)
		if ahead > SyncTolerance {
			t.log.Debug("tap: flushing to stay in sync", "direction", d.String(), "ahead", ahead)
			ours.g.Flush()
			other.g.Flush()
		}
	}
	if t.flags&FlagSmallQueue != 0 && (t.ms(ourSamples) > SmallQueue || t.ms(otherSamples) > SmallQueue) {
		t.log.Debug("tap: flushing stale audio", "direction", d.String())
		ours.g.Flush()
		other.g.Flush()
	}

	if t.muted(d) && f != nil && f.Kind == frame.KindVoice && !f.Empty() {
		return t.feedSilence(ours.g, f)
	}
	_, err := ours.g.Feed(f)
	return err
}

func (t *Tap) muted(d Direction) bool {
	both := FlagMuteRead | FlagMuteWrite
	switch {
	case t.flags&both == both:
		return true
	case d == DirRead:
		return t.flags&FlagMuteRead != 0
	default:
		return t.flags&FlagMuteWrite != 0
	}
}

// feedSilence stands in for f with silence of the same duration.
func (t *Tap) feedSilence(g *gather.Gatherer, f *frame.Frame) error {
	n := f.Samples * t.rate / f.Format.SampleRate()
	if n <= 0 {
		return nil
	}
	data := pool.Get(n * 2)
	clear(data)
	_, err := g.Feed(frame.Voice(frame.Linear(t.rate), n, data))
	pool.Put(data)
	return err
}

// Read returns samples of linear audio from one direction, or both mixed.
// It returns nil when not enough audio is buffered, or, for DirBoth, when
// one side has audio and the other has written within twice the frame
// duration so its audio is likely on the way.
func (t *Tap) Read(d Direction, samples int) (*frame.Owned, error) {
	if samples <= 0 {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	switch d {
	case DirRead, DirWrite:
		buf, ok := t.readSide(d, samples)
		if !ok {
			return nil, nil
		}
		return frame.Slin(t.rate, buf), nil
	case DirBoth:
		return t.readBoth(samples), nil
	}
	return nil, ErrDirection
}

func (t *Tap) readSide(d Direction, samples int) ([]int16, bool) {
	s := &t.sides[d]
	if s.g.Available() < samples {
		return nil, false
	}
	buf := make([]int16, samples)
	if s.g.Read(buf) != samples {
		return nil, false
	}
	adjustVolume(buf, s.volume)
	return buf, true
}

func (t *Tap) readBoth(samples int) *frame.Owned {
	r, w := &t.sides[DirRead], &t.sides[DirWrite]
	usableRead := r.g.Available() >= samples
	usableWrite := w.g.Available() >= samples
	if !usableRead && !usableWrite {
		return nil
	}
	wait := 2 * t.ms(samples)
	now := t.now()
	if usableRead && !usableWrite && now.Sub(w.last) < wait {
		t.log.Debug("tap: waiting for write side")
		return nil
	}
	if usableWrite && !usableRead && now.Sub(r.last) < wait {
		t.log.Debug("tap: waiting for read side")
		return nil
	}

	rb, rok := t.readSide(DirRead, samples)
	wb, wok := t.readSide(DirWrite, samples)
	switch {
	case rok && wok:
		for i := range rb {
			rb[i] = saturate(int64(rb[i]) + int64(wb[i]))
		}
		return frame.Slin(t.rate, rb)
	case rok:
		return frame.Slin(t.rate, rb)
	case wok:
		return frame.Slin(t.rate, wb)
	}
	return nil
}

func adjustVolume(buf []int16, v int) {
	switch {
	case v > 0:
		for i, s := range buf {
			buf[i] = saturate(int64(s) * int64(v))
		}
	case v < 0:
		div := int64(-v)
		for i, s := range buf {
			buf[i] = int16(int64(s) / div)
		}
	}
}

func saturate(v int64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}

// Flush drops the audio of both directions.
func (t *Tap) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.sides {
		t.sides[i].g.Flush()
	}
}

func (t *Tap) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for i := range t.sides {
		errs = append(errs, t.sides[i].g.Close())
	}
	return errors.Join(errs...)
}
