package pollkit

import (
	"sync"
)

// taskQueue is the semaphore-gated operation queue feeding thread-pool
// workers. pushExit posts wake-ups without enqueueing anything, so each woken
// worker observes an empty list and exits.
type taskQueue struct {
	mu   sync.Mutex
	list List[*Operation]
	sem  Semaphore
}

func (x *taskQueue) pushBack(op *Operation) {
	x.mu.Lock()
	x.list.PushBack(op)
	x.mu.Unlock()
	x.sem.Post(1)
}

func (x *taskQueue) pushFront(op *Operation) {
	x.mu.Lock()
	x.list.PushFront(op)
	x.mu.Unlock()
	x.sem.Post(1)
}

// pushExit posts n empty tokens, one per worker to release.
func (x *taskQueue) pushExit(n uint64) {
	x.sem.Post(n)
}

// pop blocks for a token, then reports whether it carried a task.
func (x *taskQueue) pop() (*Operation, bool) {
	x.sem.Wait()
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.list.PopFront()
}

func (x *taskQueue) size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.list.Len()
}
