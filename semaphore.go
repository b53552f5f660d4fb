package pollkit

import (
	"sync"
)

// Semaphore is a counting semaphore. Post with n == 1 wakes a single waiter;
// larger posts wake all waiters, which is what the task-queue shutdown path
// relies on to release every worker at once.
//
// The zero value is ready for use.
type Semaphore struct {
	mu    sync.Mutex
	cond  sync.Cond
	count uint64
}

// Post adds n to the count, waking one waiter for n == 1 and all waiters
// otherwise.
func (x *Semaphore) Post(n uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cond.L == nil {
		x.cond.L = &x.mu
	}
	x.count += n
	if n == 1 {
		x.cond.Signal()
	} else {
		x.cond.Broadcast()
	}
}

// Wait blocks until the count is positive, then decrements it.
func (x *Semaphore) Wait() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cond.L == nil {
		x.cond.L = &x.mu
	}
	for x.count == 0 {
		x.cond.Wait()
	}
	x.count--
}
