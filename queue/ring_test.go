package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		var r Ring[int]
		_, ok := r.PopFront()
		assert.False(t, ok)
		r.PushBack(1)
		r.PushBack(2)
		v, ok := r.Front()
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("wraps and grows in order", func(t *testing.T) {
		r := NewRing[int](3)
		r.PushBack(1)
		r.PushBack(2)
		r.PushBack(3)
		v, _ := r.PopFront()
		assert.Equal(t, 1, v)
		// head is now in the middle; force a wrapped grow.
		r.PushBack(4)
		r.PushBack(5)
		r.PushBack(6)
		assert.Equal(t, 5, r.Len())

		var got []int
		r.Do(func(v int) { got = append(got, v) })
		assert.Equal(t, []int{2, 3, 4, 5, 6}, got)

		got = got[:0]
		for r.Len() > 0 {
			v, ok := r.PopFront()
			assert.True(t, ok)
			got = append(got, v)
		}
		assert.Equal(t, []int{2, 3, 4, 5, 6}, got)
	})

	t.Run("reset", func(t *testing.T) {
		r := NewRing[string](0)
		r.PushBack("a")
		r.PushBack("b")
		r.Reset()
		assert.Equal(t, 0, r.Len())
		_, ok := r.Front()
		assert.False(t, ok)
		r.PushBack("c")
		v, _ := r.PopFront()
		assert.Equal(t, "c", v)
	})
}
