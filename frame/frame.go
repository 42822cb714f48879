// Package frame defines the media frame passed between producers and the
// regularization engine, and the ownership rules that go with it.
//
// A *Frame is a borrowed view: its Data may belong to the producer and may be
// reused as soon as the call that received it returns. An *Owned is an
// independent copy that the holder must Release. Anything that keeps a frame
// beyond a single call keeps an *Owned.
package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/pidato/framing/pool"
)

var (
	ErrInconsistent = errors.New("frame: byte length does not match sample count")
	ErrReleased     = errors.New("frame: use after release")
)

// Frame is a timed, typed chunk of media payload.
type Frame struct {
	Kind    Kind
	Format  Format
	Samples int
	Data    []byte
	// Delivery is the time the first sample should be played out. The zero
	// value means unknown.
	Delivery time.Time
	// Seq is an optional producer sequence number.
	Seq int
}

// Voice builds a borrowed voice frame over data.
func Voice(format Format, samples int, data []byte) *Frame {
	return &Frame{Kind: KindVoice, Format: format, Samples: samples, Data: data}
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

// Empty reports whether the frame carries no media.
func (f *Frame) Empty() bool {
	return len(f.Data) == 0 || f.Samples == 0
}

// Duration returns the play time of the frame.
func (f *Frame) Duration() time.Duration {
	return f.Format.Duration(f.Samples)
}

// Validate checks the byte length against the sample count for formats with
// a fixed sample size.
func (f *Frame) Validate() error {
	bps := f.Format.BytesPerSample()
	if bps == 0 {
		return nil
	}
	if len(f.Data) != f.Samples*bps {
		return fmt.Errorf("%w: %s has %d bytes for %d samples", ErrInconsistent, f.Format, len(f.Data), f.Samples)
	}
	return nil
}

// Dup copies the frame into pooled memory the caller owns.
func (f *Frame) Dup() *Owned {
	data := pool.Get(len(f.Data))
	copy(data, f.Data)
	o := &Owned{f: *f, pooled: true}
	o.f.Data = data
	return o
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %s samples=%d bytes=%d", f.Kind, f.Format, f.Samples, len(f.Data))
}

// Owned is a frame whose payload belongs to the holder.
type Owned struct {
	f        Frame
	pooled   bool
	released bool
}

// NewOwned wraps data as an owned frame. The caller hands data over and must
// not touch it afterwards.
func NewOwned(kind Kind, format Format, samples int, data []byte) *Owned {
	return &Owned{f: Frame{Kind: kind, Format: format, Samples: samples, Data: data}}
}

// NewOwnedPooled is NewOwned for data obtained from pool.Get. Release
// returns it to the pool.
func NewOwnedPooled(kind Kind, format Format, samples int, data []byte) *Owned {
	o := NewOwned(kind, format, samples, data)
	o.pooled = true
	return o
}

// Frame returns a view of the owned frame. The view is valid until Release.
func (o *Owned) Frame() *Frame {
	if o.released {
		panic(ErrReleased)
	}
	return &o.f
}

func (o *Owned) Format() Format          { return o.f.Format }
func (o *Owned) Samples() int            { return o.f.Samples }
func (o *Owned) Data() []byte            { return o.f.Data }
func (o *Owned) Len() int                { return len(o.f.Data) }
func (o *Owned) Delivery() time.Time     { return o.f.Delivery }
func (o *Owned) SetDelivery(t time.Time) { o.f.Delivery = t }

// Released reports whether Release was called.
func (o *Owned) Released() bool {
	return o.released
}

// Release gives the payload back. Calling it twice is a no-op.
func (o *Owned) Release() {
	if o == nil || o.released {
		return
	}
	o.released = true
	if o.pooled {
		pool.Put(o.f.Data)
	}
	o.f.Data = nil
}
