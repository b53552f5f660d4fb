package pollkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainList[T any](l *List[T]) []T {
	var out []T
	for {
		v, ok := l.PopFront()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestList_pushPopOrdering(t *testing.T) {
	var l List[int]
	require.True(t, l.Empty())

	l.PushBack(2)
	l.PushBack(3)
	l.PushFront(1)
	require.Equal(t, 3, l.Len())

	front, ok := l.Front()
	require.True(t, ok)
	require.Equal(t, 1, front)

	assert.Equal(t, []int{1, 2, 3}, drainList(&l))
	assert.True(t, l.Empty())

	_, ok = l.PopFront()
	assert.False(t, ok)
}

func TestList_swap(t *testing.T) {
	var a, b List[string]
	a.PushBack(`x`)
	a.PushBack(`y`)
	b.PushBack(`z`)

	a.Swap(&b)
	assert.Equal(t, []string{`z`}, drainList(&a))
	assert.Equal(t, []string{`x`, `y`}, drainList(&b))
}

func TestList_append(t *testing.T) {
	var a, b List[int]
	for i := 1; i <= 3; i++ {
		a.PushBack(i)
	}
	for i := 4; i <= 6; i++ {
		b.PushBack(i)
	}

	a.Append(&b)
	require.True(t, b.Empty())
	require.Equal(t, 6, a.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, drainList(&a))

	// Appending into an empty list adopts the source wholesale.
	var c List[int]
	b.PushBack(7)
	c.Append(&b)
	assert.Equal(t, []int{7}, drainList(&c))
}

func TestList_forEachAndClear(t *testing.T) {
	var l List[int]
	for i := 0; i < 5; i++ {
		l.PushBack(i)
	}
	var sum int
	l.ForEach(func(v int) { sum += v })
	assert.Equal(t, 10, sum)

	l.Clear()
	assert.True(t, l.Empty())
	assert.Equal(t, 0, l.Len())
}
