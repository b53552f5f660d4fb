package pollkit

import (
	"sync/atomic"
)

// ObjectCounter is a cheap statistics counter tracking live instances of some
// object class. Increase at construction, Decrease at disposal (typically via
// a cleanup), Count from anywhere.
type ObjectCounter struct {
	n atomic.Int64
}

// Increase increments the counter.
func (x *ObjectCounter) Increase() { x.n.Add(1) }

// Decrease decrements the counter.
func (x *ObjectCounter) Decrease() { x.n.Add(-1) }

// Count returns the current value.
func (x *ObjectCounter) Count() int64 { return x.n.Load() }

// BufferCount returns the number of live [Buffer] instances.
func BufferCount() int64 { return bufferStatistic.Count() }
