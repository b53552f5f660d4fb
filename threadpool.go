package pollkit

import (
	"runtime"
)

// ThreadPool runs submitted operations on a fixed set of worker goroutines
// pulled from a semaphore-gated queue. Use it — or the process-wide
// [WorkPool] — for blocking or CPU-bound work that would otherwise starve a
// poller.
type ThreadPool struct {
	load     *LoadMeter
	num      int
	priority Priority
	queue    taskQueue
	group    ThreadGroup
}

// NewThreadPool constructs a pool of num workers at the given priority,
// starting them immediately when autoRun is set. num <= 0 selects one worker
// per CPU.
func NewThreadPool(num int, priority Priority, autoRun bool) *ThreadPool {
	if num <= 0 {
		num = runtime.NumCPU()
	}
	x := &ThreadPool{
		load:     newLoadMeter(0, 0),
		num:      num,
		priority: priority,
	}
	if autoRun {
		x.Start()
	}
	return x
}

// Start spawns any missing workers, up to the configured count.
func (x *ThreadPool) Start() {
	for i := x.group.Size(); i < x.num; i++ {
		x.group.CreateThread(x.run)
	}
}

// Async enqueues fn at the tail, returning a cancellation handle. A
// submission from one of this pool's own workers executes synchronously and
// returns nil.
func (x *ThreadPool) Async(fn func()) *Operation {
	return x.async(fn, true, false)
}

// AsyncFirst enqueues fn at the head; otherwise as Async.
func (x *ThreadPool) AsyncFirst(fn func()) *Operation {
	return x.async(fn, true, true)
}

// AsyncMaySync is Async with control over the synchronous fast path.
func (x *ThreadPool) AsyncMaySync(fn func(), maySync bool) *Operation {
	return x.async(fn, maySync, false)
}

// AsyncFirstMaySync is AsyncFirst with control over the synchronous fast path.
func (x *ThreadPool) AsyncFirstMaySync(fn func(), maySync bool) *Operation {
	return x.async(fn, maySync, true)
}

func (x *ThreadPool) async(fn func(), maySync, first bool) *Operation {
	if maySync && x.group.IsThisThreadIn() {
		fn()
		return nil
	}
	op := NewOperation(fn)
	if first {
		x.queue.pushFront(op)
	} else {
		x.queue.pushBack(op)
	}
	return op
}

// Size returns the queue backlog.
func (x *ThreadPool) Size() int {
	return x.queue.size()
}

// Load returns the pool's load percentage.
func (x *ThreadPool) Load() int {
	return x.load.Load()
}

// Shutdown releases every worker with an exit token. A worker exits only on a
// pop that finds the queue empty, so tasks already queued still run first.
// Safe to call more than once; surplus tokens are harmless.
func (x *ThreadPool) Shutdown() {
	x.queue.pushExit(uint64(x.num))
}

// Wait joins all workers.
func (x *ThreadPool) Wait() error {
	return x.group.JoinAll()
}

// Close shuts the pool down and joins its workers.
func (x *ThreadPool) Close() error {
	x.Shutdown()
	return x.Wait()
}

// run is the worker loop: block on the queue, execute, repeat until an exit
// token arrives.
func (x *ThreadPool) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	applyPriority(x.priority)
	for {
		x.load.StartSleep()
		op, ok := x.queue.pop()
		x.load.WakeUp()
		if !ok {
			return
		}
		invokeOperation(op, `thread_pool`)
	}
}

var _ Executor = (*ThreadPool)(nil)
