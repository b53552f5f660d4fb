package pollkit

import (
	"runtime"
)

// defaultBufferCapacity sizes the per-poller shared scratch buffer. One extra
// byte is reserved by SharedBuffer for a terminator, mirroring the usual
// read-into-C-string pattern of I/O callbacks.
const defaultBufferCapacity = 256 * 1024

var bufferStatistic ObjectCounter

// Buffer is a reusable byte buffer with an explicit size distinct from its
// capacity, handed to I/O callbacks as scratch space.
type Buffer struct {
	data []byte
	size int
}

// NewBuffer returns a buffer with the given capacity (zero defers the
// allocation to the first SetCapacity).
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{}
	if capacity > 0 {
		b.SetCapacity(capacity)
	}
	bufferStatistic.Increase()
	runtime.AddCleanup(b, func(*struct{}) { bufferStatistic.Decrease() }, (*struct{})(nil))
	return b
}

// SetCapacity grows the backing array, preserving content up to the current
// size. A capacity at or below the current one leaves the array unchanged; it
// never shrinks.
func (x *Buffer) SetCapacity(capacity int) {
	if capacity <= cap(x.data) {
		x.data = x.data[:cap(x.data)]
		return
	}
	data := make([]byte, capacity)
	copy(data, x.data[:x.size])
	x.data = data
}

// Capacity returns the backing array's length.
func (x *Buffer) Capacity() int {
	return cap(x.data)
}

// Data returns the full backing slice; callers read or write up to Size.
func (x *Buffer) Data() []byte {
	return x.data
}

// Size returns the logical content length.
func (x *Buffer) Size() int {
	return x.size
}

// SetSize records the logical content length after a read. Values beyond the
// capacity are clamped.
func (x *Buffer) SetSize(size int) {
	if size < 0 {
		size = 0
	}
	if size > cap(x.data) {
		size = cap(x.data)
	}
	x.size = size
}

// Assign copies b into the buffer, growing it as needed.
func (x *Buffer) Assign(b []byte) {
	x.SetCapacity(len(b) + 1)
	copy(x.data, b)
	x.size = len(b)
}

// Bytes returns the content slice, data up to the logical size.
func (x *Buffer) Bytes() []byte {
	return x.data[:x.size]
}
