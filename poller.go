package pollkit

import (
	"fmt"
	"runtime"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"weak"
)

// Poller is the reactor: a single loop goroutine multiplexing descriptor
// readiness, asynchronously submitted tasks, and delayed tasks over one
// kernel multiplexer (epoll where available, select otherwise).
//
// The event map, the delay map, and the shared scratch buffer are touched
// only from the loop goroutine. Every mutation originating elsewhere is
// marshalled through the inbox, which is the sole cross-goroutine structure;
// submissions signal the loop with a one-byte write to a self-pipe whose read
// end is itself a registered descriptor.
type Poller struct {
	load     *LoadMeter
	priority Priority

	running    atomic.Bool
	startedSem Semaphore
	loopID     atomic.Uint64
	loopDone   chan struct{}
	stopOnce   sync.Once

	pipe *wakePipe

	opMu sync.Mutex
	ops  List[*Operation]

	// Loop-goroutine confined.
	events   map[int]*fdRecord
	delayed  []delayEntry
	exitFlag bool

	sharedBuf weak.Pointer[Buffer]

	backend pollerBackend
}

// delayEntry pairs an absolute monotonic-millisecond deadline with its
// operation. The slice is kept sorted by deadline, stable for equal keys.
type delayEntry struct {
	when uint64
	op   *DelayedOperation
}

// NewPoller constructs a poller at the given priority. The multiplexer and
// the self-pipe are created eagerly; either failing is fatal and surfaces as
// the returned error. Call RunLoop to start it.
func NewPoller(priority Priority) (*Poller, error) {
	x := &Poller{
		load:     newLoadMeter(0, 0),
		priority: priority,
		loopDone: make(chan struct{}),
		events:   make(map[int]*fdRecord),
	}

	pipe, err := newWakePipe()
	if err != nil {
		return nil, err
	}
	x.pipe = pipe

	if err := x.backendInit(); err != nil {
		pipe.close()
		return nil, err
	}

	// The constructing goroutine acts as the loop goroutine until RunLoop
	// takes over, so the pipe registration happens inline.
	x.loopID.Store(goroutineID())
	if err := x.addEventLoopThread(pipe.readFD, EventRead, func(Event) {
		x.onPipeEvent()
	}); err != nil {
		x.backendClose()
		pipe.close()
		return nil, fmt.Errorf(`pollkit: register wake pipe failed: %w`, err)
	}

	return x, nil
}

// IsCurrentThread reports whether the calling goroutine is this poller's loop
// goroutine.
func (x *Poller) IsCurrentThread() bool {
	return x.loopID.Load() == goroutineID()
}

// AddEvent registers fd with the given interest mask. On the loop goroutine
// the kernel registration happens inline and its failure is returned with the
// event map untouched; from any other goroutine the registration is
// marshalled through the inbox and errors are logged instead.
func (x *Poller) AddEvent(fd int, mask Event, cb EventCallback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if x.IsCurrentThread() {
		return x.addEventLoopThread(fd, mask, cb)
	}
	x.Async(func() {
		if err := x.addEventLoopThread(fd, mask, cb); err != nil {
			logger().Err().
				Int(`fd`, fd).
				Err(err).
				Log(`pollkit: deferred add event failed`)
		}
	})
	return nil
}

// DeleteEvent unregisters fd. done, if non-nil, is invoked on the loop
// goroutine with the outcome.
func (x *Poller) DeleteEvent(fd int, done DeleteCallback) {
	if done == nil {
		done = func(bool) {}
	}
	if x.IsCurrentThread() {
		done(x.deleteEventLoopThread(fd))
		return
	}
	x.Async(func() {
		done(x.deleteEventLoopThread(fd))
	})
}

// ModifyEvent changes fd's interest mask.
func (x *Poller) ModifyEvent(fd int, mask Event) error {
	return x.modifyEventImpl(fd, mask)
}

// Async enqueues fn at the inbox tail, in submission order relative to other
// Async calls. On the loop goroutine fn executes inline and a nil handle is
// returned.
func (x *Poller) Async(fn func()) *Operation {
	return x.async(fn, true, false)
}

// AsyncFirst enqueues fn at the inbox head, ahead of any pending Async
// submissions; otherwise as Async.
func (x *Poller) AsyncFirst(fn func()) *Operation {
	return x.async(fn, true, true)
}

// AsyncMaySync is Async with control over the inline fast path.
func (x *Poller) AsyncMaySync(fn func(), maySync bool) *Operation {
	return x.async(fn, maySync, false)
}

// AsyncFirstMaySync is AsyncFirst with control over the inline fast path.
func (x *Poller) AsyncFirstMaySync(fn func(), maySync bool) *Operation {
	return x.async(fn, maySync, true)
}

var wakeByte = [1]byte{0}

func (x *Poller) async(fn func(), maySync, first bool) *Operation {
	if maySync && x.IsCurrentThread() {
		fn()
		return nil
	}
	op := NewOperation(fn)
	x.opMu.Lock()
	if first {
		x.ops.PushFront(op)
	} else {
		x.ops.PushBack(op)
	}
	x.opMu.Unlock()
	if _, err := x.pipe.write(wakeByte[:]); err != nil {
		logger().Err().
			Err(err).
			Log(`pollkit: wake pipe write failed`)
	}
	return op
}

// StartDelayOperation schedules fn to run on the loop goroutine after delayMs
// milliseconds. The returned handle supports Cancel; additionally, fn's
// return value re-arms the operation that many milliseconds after the
// dispatch, or stops it when zero.
//
// Installation goes through AsyncFirst rather than mutating the delay map
// directly: the map is loop-goroutine confined, and head-of-queue submission
// guarantees the nearest-deadline recomputation beats ordinary pending work.
func (x *Poller) StartDelayOperation(delayMs uint64, fn func() uint64) *DelayedOperation {
	op := NewDelayedOperation(fn)
	when := CurrentMillisecond() + delayMs
	x.AsyncFirst(func() {
		x.insertDelayed(when, op)
	})
	return op
}

// SharedBuffer lazily produces the poller's scratch byte buffer, reused
// across callbacks on the loop goroutine. The buffer is held weakly: it lives
// only while something retains it; once unreferenced it may be collected, and
// the next call allocates a fresh one.
func (x *Poller) SharedBuffer() *Buffer {
	if buf := x.sharedBuf.Value(); buf != nil {
		return buf
	}
	buf := NewBuffer(1 + defaultBufferCapacity)
	x.sharedBuf = weak.Make(buf)
	return buf
}

// Load returns the poller's load percentage.
func (x *Poller) Load() int {
	return x.load.Load()
}

// RunLoop starts the reactor. With blocked unset it spawns the loop
// goroutine, waits until the loop has started, and returns; with blocked set
// the calling goroutine becomes the loop goroutine and does not return until
// shutdown. registerSelf publishes the poller in the process-wide
// goroutine → poller map consulted by [CurrentPoller].
//
// Only the first call has effect.
func (x *Poller) RunLoop(blocked, registerSelf bool) {
	if !x.running.CompareAndSwap(false, true) {
		return
	}
	if blocked {
		x.runLoop(registerSelf)
		return
	}
	go x.runLoop(registerSelf)
	x.startedSem.Wait()
}

func (x *Poller) runLoop(registerSelf bool) {
	// epoll registrations and thread priority want a stable OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	applyPriority(x.priority)

	id := goroutineID()
	x.loopID.Store(id)
	if registerSelf {
		registerCurrentPoller(x)
	}
	x.exitFlag = false
	x.startedSem.Post(1)

	for !x.exitFlag {
		minDelay := x.getMinDelay()
		x.waitAndDispatch(minDelay)
	}

	// Drain submissions that raced the shutdown sentinel, then release the
	// descriptors.
	x.onPipeEvent()
	if registerSelf {
		unregisterCurrentPoller(id)
	}
	x.backendClose()
	x.pipe.close()
	close(x.loopDone)
}

// Shutdown stops the loop and waits for it to exit. It is idempotent; a
// second call is a no-op. Called from inside a callback it merely flags the
// loop, which exits after the current iteration.
//
// Shutdown must not precede RunLoop.
func (x *Poller) Shutdown() {
	if x.IsCurrentThread() {
		x.exitFlag = true
		return
	}
	x.stopOnce.Do(func() {
		// The sentinel takes the head of the inbox and skips the inline fast
		// path so it always lands on the loop goroutine.
		x.async(func() { x.exitFlag = true }, false, true)
		<-x.loopDone
	})
}

// onPipeEvent drains the self-pipe, then swaps the inbox out under its lock
// and runs each task. This is the only place inbox tasks execute, so FD event
// callbacks never interleave concurrently with them on the same poller.
func (x *Poller) onPipeEvent() {
	var buf [1024]byte
	for {
		if n, err := x.pipe.read(buf[:]); n <= 0 || err != nil {
			break
		}
	}

	var swap List[*Operation]
	x.opMu.Lock()
	swap.Swap(&x.ops)
	x.opMu.Unlock()

	swap.ForEach(func(op *Operation) {
		invokeOperation(op, `poller`)
	})
}

// insertDelayed keeps the delay map sorted by deadline; entries with equal
// deadlines preserve insertion order.
func (x *Poller) insertDelayed(when uint64, op *DelayedOperation) {
	i := sort.Search(len(x.delayed), func(i int) bool {
		return x.delayed[i].when > when
	})
	x.delayed = slices.Insert(x.delayed, i, delayEntry{when: when, op: op})
}

// getMinDelay returns the time in milliseconds until the nearest deadline,
// or 0 when no delayed operations exist (interpreted by the multiplexer wait
// as "block indefinitely"). Entries already due are flushed first.
func (x *Poller) getMinDelay() uint64 {
	if len(x.delayed) == 0 {
		return 0
	}
	now := CurrentMillisecond()
	if x.delayed[0].when > now {
		return x.delayed[0].when - now
	}
	return x.flushDelayed(now)
}

// flushDelayed swaps the whole delay map out, dispatches the due prefix in
// deadline order, re-arms entries whose invocable requested it, and merges
// the not-yet-due remainder back. The destructive swap guarantees any
// reschedule earlier than the previously computed minimum delay is observed
// before the next sleep, at the cost of an O(n) merge — callers are expected
// to keep few timers outstanding.
func (x *Poller) flushDelayed(now uint64) uint64 {
	pending := x.delayed
	x.delayed = nil

	i := 0
	for ; i < len(pending) && pending[i].when <= now; i++ {
		op := pending[i].op
		if next := x.invokeDelayed(op); next != 0 {
			x.insertDelayed(now+next, op)
		}
	}

	if i < len(pending) {
		if len(x.delayed) == 0 {
			x.delayed = pending[i:]
		} else {
			x.delayed = mergeDelayed(x.delayed, pending[i:])
		}
	}

	if len(x.delayed) == 0 {
		return 0
	}
	return x.delayed[0].when - now
}

// invokeDelayed runs a delayed operation, treating a panic as "do not
// re-arm".
func (x *Poller) invokeDelayed(op *DelayedOperation) (next uint64) {
	defer func() {
		if r := recover(); r != nil {
			next = 0
			logger().Err().
				Str(`panic`, fmt.Sprint(r)).
				Log(`pollkit: delayed task panic recovered`)
		}
	}()
	return op.invoke()
}

// mergeDelayed merges two sorted runs; on equal deadlines the not-yet-due
// remainder (b) precedes freshly re-armed entries (a), matching multimap
// insertion order.
func mergeDelayed(a, b []delayEntry) []delayEntry {
	merged := make([]delayEntry, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		if b[0].when <= a[0].when {
			merged = append(merged, b[0])
			b = b[1:]
		} else {
			merged = append(merged, a[0])
			a = a[1:]
		}
	}
	merged = append(merged, b...)
	merged = append(merged, a...)
	return merged
}

// dispatchEvent invokes a descriptor callback, recovering and logging panics
// so one bad callback cannot take down the loop.
func (x *Poller) dispatchEvent(record *fdRecord, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger().Err().
				Str(`panic`, fmt.Sprint(r)).
				Log(`pollkit: event callback panic recovered`)
		}
	}()
	record.cb(ev)
}

var _ Executor = (*Poller)(nil)

// Process-wide goroutine → poller map, populated by RunLoop(registerSelf) and
// consulted by CurrentPoller. Entries are weak so a discovered poller that is
// mid-teardown degrades to nil rather than resurrecting.
var allPollers struct {
	mu sync.Mutex
	m  map[uint64]weak.Pointer[Poller]
}

func registerCurrentPoller(x *Poller) {
	allPollers.mu.Lock()
	defer allPollers.mu.Unlock()
	if allPollers.m == nil {
		allPollers.m = make(map[uint64]weak.Pointer[Poller])
	}
	allPollers.m[goroutineID()] = weak.Make(x)
}

func unregisterCurrentPoller(id uint64) {
	allPollers.mu.Lock()
	defer allPollers.mu.Unlock()
	delete(allPollers.m, id)
}

// CurrentPoller returns the poller whose loop goroutine is the caller, or nil
// when the caller is not a registered loop goroutine.
func CurrentPoller() *Poller {
	allPollers.mu.Lock()
	defer allPollers.mu.Unlock()
	if wp, ok := allPollers.m[goroutineID()]; ok {
		return wp.Value()
	}
	return nil
}
