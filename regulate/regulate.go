// Package regulate repackages a stream of same-format voice frames into
// fixed-size chunks.
//
// A Regularizer is not safe for concurrent use. Frames passed to Feed are
// borrowed; a frame taken on the zero-copy path must stay untouched until
// the next Read returns it.
package regulate

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/pool"
)

var (
	ErrInvalidSize    = errors.New("regulate: chunk size must be positive")
	ErrWrongKind      = errors.New("regulate: not a voice frame")
	ErrFormatMismatch = errors.New("regulate: format mismatch")
	ErrOverflow       = errors.New("regulate: buffer overflow")
	ErrClosed         = errors.New("regulate: closed")
)

// Flags select stream policies.
type Flags uint32

const (
	// FlagVAD handles codecs that send short silence frames: a short frame
	// is emitted as soon as it is buffered, and the zero-copy path is off.
	FlagVAD Flags = 1 << iota
	// FlagKeepRedundant keeps frames arriving after a short VAD frame in the
	// same alignment window. Without it they are dropped.
	FlagKeepRedundant
	// FlagBigEndian byte-swaps 16-bit linear payloads on Feed.
	FlagBigEndian
	// FlagResync drops leftover bytes that keep the zero-copy path from
	// being taken after resyncAfter chunk-sized frames in a row.
	FlagResync
)

const (
	// DefaultHeadroom is the buffer space beyond one chunk, in bytes.
	DefaultHeadroom = 8000
	// DefaultVADUnit is the encoded length of one regular frame of a VAD
	// codec, G.729 being the reference.
	DefaultVADUnit = 10

	resyncAfter = 10
)

// Drop reasons reported to the Observer.
const (
	DropRedundant = "redundant"
	DropOverflow  = "overflow"
	DropResync    = "resync"
)

type Observer interface {
	ObserveEmit(bytes int, zeroCopy bool)
	ObserveDrop(reason string, bytes int)
}

type nopObserver struct{}

func (nopObserver) ObserveEmit(int, bool)   {}
func (nopObserver) ObserveDrop(string, int) {}

type Option func(*Regularizer)

func WithHeadroom(bytes int) Option {
	return func(r *Regularizer) {
		if bytes >= 0 {
			r.headroom = bytes
		}
	}
}

func WithVADUnit(bytes int) Option {
	return func(r *Regularizer) {
		if bytes > 0 {
			r.unit = bytes
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Regularizer) {
		if l != nil {
			r.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Regularizer) {
		if o != nil {
			r.obs = o
		}
	}
}

// Regularizer accumulates payload bytes and emits chunkSize-byte frames.
type Regularizer struct {
	chunk    int
	headroom int
	unit     int
	flags    Flags

	format frame.Format
	locked bool
	// samplesPerByte is taken from the first frame with a payload.
	samplesPerByte float64

	buf      []byte
	n        int
	delivery time.Time
	pending  *frame.Frame
	streak   int

	out     frame.Frame
	outData []byte
	closed  bool

	log *slog.Logger
	obs Observer
}

// New returns a Regularizer emitting chunkSize-byte frames.
func New(chunkSize int, flags Flags, opts ...Option) (*Regularizer, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}
	r := &Regularizer{
		chunk:    chunkSize,
		headroom: DefaultHeadroom,
		unit:     DefaultVADUnit,
		flags:    flags,
		log:      slog.Default(),
		obs:      nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.buf = pool.Get(r.chunk + r.headroom)
	r.outData = pool.Get(r.chunk)
	return r, nil
}

func (r *Regularizer) ChunkSize() int { return r.chunk }

// Cap is the most bytes the buffer holds.
func (r *Regularizer) Cap() int { return len(r.buf) }

// Len returns the bytes waiting to be read, including a zero-copy frame.
func (r *Regularizer) Len() int {
	if r.pending != nil {
		return r.n + len(r.pending.Data)
	}
	return r.n
}

// Format returns the locked format and whether one is locked.
func (r *Regularizer) Format() (frame.Format, bool) {
	return r.format, r.locked
}

func (r *Regularizer) Flags() Flags          { return r.flags }
func (r *Regularizer) SetFlags(f Flags)      { r.flags = f }
func (r *Regularizer) TestFlag(f Flags) bool { return r.flags&f == f }

// Feed accepts one voice frame. The first frame locks the format until
// Reset.
func (r *Regularizer) Feed(f *frame.Frame) error {
	if r.closed {
		return ErrClosed
	}
	if f == nil || f.Kind != frame.KindVoice {
		return ErrWrongKind
	}
	if !r.locked {
		r.format = f.Format
		r.locked = true
	} else if !f.Format.Equal(r.format) {
		return fmt.Errorf("%w: locked to %s, got %s", ErrFormatMismatch, r.format, f.Format)
	}
	if r.samplesPerByte == 0 && len(f.Data) > 0 {
		r.samplesPerByte = float64(f.Samples) / float64(len(f.Data))
	}
	if r.n+len(f.Data) > len(r.buf) {
		r.obs.ObserveDrop(DropOverflow, len(f.Data))
		return fmt.Errorf("%w: %d buffered + %d > %d", ErrOverflow, r.n, len(f.Data), len(r.buf))
	}

	if len(f.Data) == r.chunk && r.pending == nil && !r.TestFlag(FlagVAD) && !r.TestFlag(FlagBigEndian) {
		if r.n == 0 {
			r.pending = f
			return nil
		}
		if r.TestFlag(FlagResync) {
			r.streak++
			if r.streak > resyncAfter {
				r.log.Debug("regulate: dropping leftover to resume zero-copy", "bytes", r.n)
				r.obs.ObserveDrop(DropResync, r.n)
				r.n = 0
				r.streak = 0
				r.pending = f
				return nil
			}
		}
	} else {
		r.streak = 0
	}

	if r.TestFlag(FlagVAD) && r.n%r.unit != 0 && !r.TestFlag(FlagKeepRedundant) {
		r.log.Info("regulate: dropping frame after VAD frame", "format", r.format.String(), "bytes", len(f.Data))
		r.obs.ObserveDrop(DropRedundant, len(f.Data))
		return nil
	}

	dst := r.buf[r.n : r.n+len(f.Data)]
	copy(dst, f.Data)
	if r.TestFlag(FlagBigEndian) && r.format.IsLinear() {
		frame.SwapBytes16(dst)
	}
	if r.n == 0 || r.delivery.IsZero() {
		r.delivery = f.Delivery
	}
	r.n += len(f.Data)
	return nil
}

// Read returns the next chunk, or nil when not enough is buffered. The frame
// is valid until the next call to Read, Reset, Reconfigure or Close.
func (r *Regularizer) Read() *frame.Frame {
	if r.closed {
		return nil
	}
	if p := r.pending; p != nil {
		r.pending = nil
		r.obs.ObserveEmit(len(p.Data), true)
		return p
	}
	if r.n == 0 {
		return nil
	}
	if r.n < r.chunk && !(r.TestFlag(FlagVAD) && r.n%r.unit != 0) {
		return nil
	}

	l := min(r.chunk, r.n)
	copy(r.outData, r.buf[:l])
	samples := int(math.Round(float64(l) * r.samplesPerByte))
	r.out = frame.Frame{
		Kind:     frame.KindVoice,
		Format:   r.format,
		Samples:  samples,
		Data:     r.outData[:l],
		Delivery: r.delivery,
	}
	r.n = copy(r.buf, r.buf[l:r.n])
	if !r.delivery.IsZero() {
		r.delivery = r.delivery.Add(r.format.Duration(samples))
	}
	r.obs.ObserveEmit(l, false)
	return &r.out
}

// Reset drops buffered data and unlocks the format. Flags are kept.
func (r *Regularizer) Reset() {
	r.n = 0
	r.pending = nil
	r.streak = 0
	r.locked = false
	r.format = frame.Format{}
	r.samplesPerByte = 0
	r.delivery = time.Time{}
	r.out = frame.Frame{}
}

// Reconfigure changes the chunk size, keeping buffered data. A pending
// zero-copy frame is moved into the buffer so it is cut at the new size.
func (r *Regularizer) Reconfigure(chunkSize int) error {
	if r.closed {
		return ErrClosed
	}
	if chunkSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}
	if chunkSize == r.chunk {
		return nil
	}
	r.chunk = chunkSize
	var p *frame.Frame
	if p, r.pending = r.pending, nil; p != nil {
		r.streak = 0
	}
	held := r.n
	if p != nil {
		held += len(p.Data)
	}
	if size := max(r.chunk+r.headroom, held); size != len(r.buf) {
		buf := pool.Get(size)
		copy(buf, r.buf[:r.n])
		pool.Put(r.buf)
		r.buf = buf
	}
	pool.Put(r.outData)
	r.outData = pool.Get(r.chunk)
	r.out = frame.Frame{}

	if p != nil {
		// The pending frame was fed before anything buffered.
		copy(r.buf[len(p.Data):], r.buf[:r.n])
		copy(r.buf, p.Data)
		if r.TestFlag(FlagBigEndian) && r.format.IsLinear() {
			frame.SwapBytes16(r.buf[:len(p.Data)])
		}
		if !p.Delivery.IsZero() || r.n == 0 {
			r.delivery = p.Delivery
		}
		r.n += len(p.Data)
	}
	return nil
}

// Close releases the buffers. The Regularizer is unusable afterwards.
func (r *Regularizer) Close() error {
	if r.closed {
		return nil
	}
	r.Reset()
	pool.Put(r.buf)
	pool.Put(r.outData)
	r.buf = nil
	r.outData = nil
	r.closed = true
	return nil
}
