package pollkit

import (
	"fmt"
)

// Executor accepts closures for asynchronous execution. Both the [Poller] and
// the [ThreadPool] implement it.
//
// Async enqueues at the tail, AsyncFirst at the head. Both return a handle
// for cancellation — nil when the submission was executed synchronously
// because the caller was already on an executor thread (the "may sync" fast
// path; use the MaySync variants to opt out of it).
type Executor interface {
	Async(fn func()) *Operation
	AsyncFirst(fn func()) *Operation
	AsyncMaySync(fn func(), maySync bool) *Operation
	AsyncFirstMaySync(fn func(), maySync bool) *Operation

	// Load returns the executor's current load percentage, in [0, 100].
	Load() int
}

// Sync submits fn to e and blocks until it has run. The internal semaphore is
// posted from a defer wrapping the invocable, so the caller is released even
// when fn panics (the panic itself is recovered and logged by the executor).
// A submission that executed synchronously returns a dead handle and skips
// the wait.
func Sync(e Executor, fn func()) {
	var sem Semaphore
	ret := e.Async(func() {
		defer sem.Post(1)
		fn()
	})
	if ret.Live() {
		sem.Wait()
	}
}

// SyncFirst is Sync with head-of-queue submission.
func SyncFirst(e Executor, fn func()) {
	var sem Semaphore
	ret := e.AsyncFirst(func() {
		defer sem.Post(1)
		fn()
	})
	if ret.Live() {
		sem.Wait()
	}
}

// invokeOperation dispatches op, recovering and logging panics so one bad
// task cannot take down its executor.
func invokeOperation(op *Operation, what string) {
	defer func() {
		if r := recover(); r != nil {
			logger().Err().
				Str(`source`, what).
				Str(`panic`, fmt.Sprint(r)).
				Log(`pollkit: task panic recovered`)
		}
	}()
	op.invoke()
}
