package pollkit

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// executorProvider is the shared shape of the poller pools: a fixed vector of
// pollers, selected among by load. The scan starts from a round-robin cursor
// and stops early on any poller reporting load zero, so an idle pool costs a
// single load query.
type executorProvider struct {
	pos       atomic.Uint64
	executors []*Poller
}

func (x *executorProvider) getExecutor() *Poller {
	pos := int(x.pos.Load())
	if pos >= len(x.executors) {
		pos = 0
	}
	minExecutor := x.executors[pos]
	minLoad := minExecutor.Load()
	for range x.executors {
		if minLoad == 0 {
			break
		}
		pos++
		if pos >= len(x.executors) {
			pos = 0
		}
		executor := x.executors[pos]
		if load := executor.Load(); load < minLoad {
			minExecutor, minLoad = executor, load
		}
	}
	x.pos.Store(uint64(pos))
	return minExecutor
}

// ExecutorLoads returns the load percentage of each member, in order.
func (x *executorProvider) ExecutorLoads() []int {
	loads := make([]int, len(x.executors))
	for i, executor := range x.executors {
		loads[i] = executor.Load()
	}
	return loads
}

// ForEach visits each member in order.
func (x *executorProvider) ForEach(fn func(*Poller)) {
	for _, executor := range x.executors {
		fn(executor)
	}
}

// Size returns the number of members.
func (x *executorProvider) Size() int {
	return len(x.executors)
}

// PollerPool distributes callers across a fixed set of pollers, each running
// its own loop goroutine. Obtain the process-wide instances via [DefaultPool]
// and [WorkPool].
type PollerPool struct {
	executorProvider
	preferCurrentThread atomic.Bool
}

// GetPoller returns the calling goroutine's own poller when the caller is a
// registered loop goroutine and the prefer-current-thread policy is on
// (keeping related work on one loop avoids cross-thread marshalling);
// otherwise the least-loaded member.
func (x *PollerPool) GetPoller() *Poller {
	if x.preferCurrentThread.Load() {
		if poller := CurrentPoller(); poller != nil {
			return poller
		}
	}
	return x.getExecutor()
}

// GetFirstPoller returns the vector's head, the canonical "main" poller.
func (x *PollerPool) GetFirstPoller() *Poller {
	return x.executors[0]
}

// PreferCurrentThread toggles the GetPoller policy of returning the caller's
// own poller. On by default for [DefaultPool], off for [WorkPool].
func (x *PollerPool) PreferCurrentThread(flag bool) {
	x.preferCurrentThread.Store(flag)
}

func newPollerPool(size int, priority Priority, registerSelf, prefer bool) *PollerPool {
	x := &PollerPool{}
	x.preferCurrentThread.Store(prefer)
	x.executors = make([]*Poller, 0, size)
	for i := 0; i < size; i++ {
		poller, err := NewPoller(priority)
		if err != nil {
			// Construction failure of the multiplexer or self-pipe is fatal.
			panic(fmt.Errorf(`pollkit: create poller failed: %w`, err))
		}
		poller.RunLoop(false, registerSelf)
		x.executors = append(x.executors, poller)
	}
	return x
}

var (
	defaultPoolSize atomic.Int64
	workPoolSize    atomic.Int64

	defaultPoolOnce     sync.Once
	defaultPoolInstance *PollerPool

	workPoolOnce     sync.Once
	workPoolInstance *PollerPool
)

// SetPoolSize overrides the size of [DefaultPool]. Only effective before the
// first access; zero or negative restores the hardware-concurrency default.
func SetPoolSize(size int) {
	defaultPoolSize.Store(int64(size))
}

// SetWorkPoolSize overrides the size of [WorkPool]; same rules as
// SetPoolSize.
func SetWorkPoolSize(size int) {
	workPoolSize.Store(int64(size))
}

// DefaultPool returns the process-wide reactor pool: one poller per CPU
// (unless overridden), highest priority, members registered for discovery via
// [CurrentPoller]. It is created on first access and never shut down.
func DefaultPool() *PollerPool {
	defaultPoolOnce.Do(func() {
		size := int(defaultPoolSize.Load())
		if size <= 0 {
			size = runtime.NumCPU()
		}
		defaultPoolInstance = newPollerPool(size, PriorityHighest, true, true)
		logger().Info().
			Int(`pollers`, size).
			Log(`pollkit: default poller pool started`)
	})
	return defaultPoolInstance
}

// WorkPool returns the process-wide worker pool: the same shape as
// [DefaultPool] but at lowest priority and without self-registration, for
// callers offloading blocking or CPU-bound work without polluting the reactor
// pool.
func WorkPool() *PollerPool {
	workPoolOnce.Do(func() {
		size := int(workPoolSize.Load())
		if size <= 0 {
			size = runtime.NumCPU()
		}
		workPoolInstance = newPollerPool(size, PriorityLowest, false, false)
		logger().Info().
			Int(`pollers`, size).
			Log(`pollkit: work pool started`)
	})
	return workPoolInstance
}

// DefaultPoller returns the head of [DefaultPool].
func DefaultPoller() *Poller {
	return DefaultPool().GetFirstPoller()
}
