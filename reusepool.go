package pollkit

import (
	"runtime"
	"sync/atomic"
	"weak"
)

const defaultReusePoolSize = 8

// ReusePool recycles short-lived heap objects through [PoolHandle] values.
// Obtain pops the most recently recycled object — LIFO, for cache warmth — or
// falls back to the allocator captured at construction.
//
// The free list is guarded by a test-and-set flag rather than a mutex: the
// critical sections are constant-time, and a contended caller simply bypasses
// the list (Obtain allocates fresh, a release drops the object). The pool is
// not meant for long critical sections.
type ReusePool[T any] struct {
	pool *reusePool[T]
}

// NewReusePool constructs a pool around alloc. A nil alloc defaults to
// new(T). Allocator panics propagate to the caller of Obtain.
func NewReusePool[T any](alloc func() *T) *ReusePool[T] {
	if alloc == nil {
		alloc = func() *T { return new(T) }
	}
	return &ReusePool[T]{pool: &reusePool[T]{
		alloc: alloc,
		size:  defaultReusePoolSize,
	}}
}

// SetSize caps the free list. Releases arriving at a full free list drop
// their object instead of queueing it.
func (x *ReusePool[T]) SetSize(size int) {
	x.pool.setSize(size)
}

// Obtain returns a handle to a recycled or freshly allocated object.
func (x *ReusePool[T]) Obtain() *PoolHandle[T] {
	return &PoolHandle[T]{
		value: x.pool.obtain(),
		pool:  weak.Make(x.pool),
	}
}

// Cached returns the current free-list occupancy. Zero is returned when the
// list is contended at the instant of the call.
func (x *ReusePool[T]) Cached() int {
	return x.pool.cached()
}

// reusePool is the inner pool, referenced strongly by ReusePool and weakly by
// outstanding handles. A handle that outlives its ReusePool fails to upgrade
// the weak reference and falls through to plain disposal.
type reusePool[T any] struct {
	flag  atomic.Bool
	objs  []*T
	alloc func() *T
	size  int
}

func (x *reusePool[T]) setSize(size int) {
	if size < 0 {
		size = 0
	}
	for !x.flag.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	x.size = size
	x.flag.Store(false)
}

func (x *reusePool[T]) obtain() *T {
	if x.flag.CompareAndSwap(false, true) {
		var ptr *T
		if n := len(x.objs); n > 0 {
			ptr = x.objs[n-1]
			x.objs[n-1] = nil
			x.objs = x.objs[:n-1]
		}
		x.flag.Store(false)
		if ptr != nil {
			return ptr
		}
	}
	// Contended, or the free list was empty. The allocator runs outside the
	// critical section so a panic cannot wedge the flag.
	return x.alloc()
}

func (x *reusePool[T]) recycle(obj *T) {
	if x.flag.CompareAndSwap(false, true) {
		if len(x.objs) < x.size {
			x.objs = append(x.objs, obj)
			x.flag.Store(false)
			return
		}
		x.flag.Store(false)
	}
	// Full or contended: the object is dropped for collection.
}

func (x *reusePool[T]) cached() int {
	if x.flag.CompareAndSwap(false, true) {
		n := len(x.objs)
		x.flag.Store(false)
		return n
	}
	return 0
}

// PoolHandle owns one pooled object between Obtain and Release.
//
// Release returns the object to the pool unless the quit flag is set, the
// pool is full, or the pool itself has been collected — in each of those
// cases the object is simply dropped. An object is therefore in exactly one
// of: the free list, an outstanding handle, or garbage.
type PoolHandle[T any] struct {
	value    *T
	quit     atomic.Bool
	released atomic.Bool
	pool     weak.Pointer[reusePool[T]]
}

// Get returns the held object, or nil after Release.
func (x *PoolHandle[T]) Get() *T {
	return x.value
}

// Quit sets or clears the quit flag. A handle released with the flag set
// drops its object instead of recycling it, which is how callers extract a
// pool-allocated object permanently.
func (x *PoolHandle[T]) Quit(flag bool) {
	x.quit.Store(flag)
}

// Release disposes of the held object. Safe to call more than once; only the
// first call has effect. Release never panics.
func (x *PoolHandle[T]) Release() {
	if !x.released.CompareAndSwap(false, true) {
		return
	}
	obj := x.value
	x.value = nil
	if obj == nil {
		return
	}
	if pool := x.pool.Value(); pool != nil && !x.quit.Load() {
		pool.recycle(obj)
	}
}
