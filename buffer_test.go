package pollkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_capacityAndSize(t *testing.T) {
	b := NewBuffer(16)
	require.Equal(t, 16, b.Capacity())
	require.Equal(t, 0, b.Size())

	b.SetSize(10)
	assert.Equal(t, 10, b.Size())

	// Clamped to capacity, floored at zero.
	b.SetSize(100)
	assert.Equal(t, 16, b.Size())
	b.SetSize(-1)
	assert.Equal(t, 0, b.Size())
}

func TestBuffer_growPreservesContent(t *testing.T) {
	b := NewBuffer(8)
	b.Assign([]byte(`hello`))
	require.Equal(t, []byte(`hello`), b.Bytes())

	b.SetCapacity(1024)
	assert.GreaterOrEqual(t, b.Capacity(), 1024)
	assert.Equal(t, []byte(`hello`), b.Bytes())

	// Growing via Assign works from a zero-capacity buffer too.
	c := NewBuffer(0)
	c.Assign([]byte(`world`))
	assert.Equal(t, []byte(`world`), c.Bytes())
}

func TestBuffer_statisticCounts(t *testing.T) {
	before := BufferCount()
	b := NewBuffer(1)
	assert.GreaterOrEqual(t, BufferCount(), before+1)
	_ = b
}
