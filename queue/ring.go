// Package queue provides a growable ring deque with O(1) PushBack and
// PopFront.
package queue

// Ring is a FIFO backed by a circular slice. It doubles its capacity when
// full. The zero value is ready to use. Ring is not safe for concurrent use.
type Ring[T any] struct {
	buf  []T
	head int
	n    int
}

// NewRing returns a Ring with room for size elements before growing.
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{buf: make([]T, size)}
}

// Len returns the number of queued elements.
func (r *Ring[T]) Len() int {
	return r.n
}

// PushBack appends v at the tail.
func (r *Ring[T]) PushBack(v T) {
	if r.n == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

// Front returns the head element without removing it.
func (r *Ring[T]) Front() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	return r.buf[r.head], true
}

// PopFront removes and returns the head element.
func (r *Ring[T]) PopFront() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	var zero T
	v = r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	if r.n == 0 {
		r.head = 0
	}
	return v, true
}

// Do calls fn for each element from head to tail.
func (r *Ring[T]) Do(fn func(T)) {
	for i := 0; i < r.n; i++ {
		fn(r.buf[(r.head+i)%len(r.buf)])
	}
}

// Reset drops every element.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.n = 0
}

func (r *Ring[T]) grow() {
	size := len(r.buf) * 2
	if size == 0 {
		size = 8
	}
	buf := make([]T, size)
	if r.n > 0 {
		k := copy(buf, r.buf[r.head:])
		copy(buf[k:], r.buf[:r.head])
	}
	r.buf = buf
	r.head = 0
}
