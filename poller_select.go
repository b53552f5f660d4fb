//go:build unix && !linux

package pollkit

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollerBackend on the portable fallback carries no kernel state: the event
// map itself is the registration table, and the readiness sets are rebuilt
// from it on every iteration — deliberately, so interest-bit mutations
// marshalled through the inbox are picked up without further notification.
type pollerBackend struct{}

func (x *Poller) backendInit() error { return nil }

func (x *Poller) backendClose() {}

// addEventLoopThread records the registration; there is no kernel object to
// fail. Loop goroutine only.
func (x *Poller) addEventLoopThread(fd int, mask Event, cb EventCallback) error {
	x.events[fd] = &fdRecord{mask: mask, cb: cb}
	return nil
}

// deleteEventLoopThread removes the registration. Loop goroutine only.
func (x *Poller) deleteEventLoopThread(fd int) bool {
	_, ok := x.events[fd]
	delete(x.events, fd)
	return ok
}

// modifyEventImpl rewrites the interest bits, inline on the loop goroutine or
// marshalled otherwise.
func (x *Poller) modifyEventImpl(fd int, mask Event) error {
	if x.IsCurrentThread() {
		if record, ok := x.events[fd]; ok {
			record.mask = mask
		}
		return nil
	}
	x.Async(func() {
		if record, ok := x.events[fd]; ok {
			record.mask = mask
		}
	})
	return nil
}

// waitAndDispatch rebuilds the readiness sets from the event map, blocks in
// select for up to minDelay milliseconds (infinite when zero), then collects
// the ready records — stashing the delivered bits in each record's scratch
// field — and fires their callbacks.
func (x *Poller) waitAndDispatch(minDelay uint64) {
	var readSet, writeSet, errSet unix.FdSet
	maxFD := 0
	for fd, record := range x.events {
		if fd > maxFD {
			maxFD = fd
		}
		if record.mask&EventRead != 0 {
			readSet.Set(fd)
		}
		if record.mask&EventWrite != 0 {
			writeSet.Set(fd)
		}
		if record.mask&EventError != 0 {
			errSet.Set(fd)
		}
	}

	var tv *unix.Timeval
	if minDelay != 0 {
		t := unix.NsecToTimeval(int64(minDelay) * int64(time.Millisecond))
		tv = &t
	}

	x.load.StartSleep()
	n, err := unix.Select(maxFD+1, &readSet, &writeSet, &errSet, tv)
	x.load.WakeUp()
	if err != nil || n <= 0 {
		return
	}

	// Collect first, then dispatch: callbacks may mutate the event map.
	var ready List[*fdRecord]
	for fd, record := range x.events {
		var ev Event
		if readSet.IsSet(fd) {
			ev |= EventRead
		}
		if writeSet.IsSet(fd) {
			ev |= EventWrite
		}
		if errSet.IsSet(fd) {
			ev |= EventError
		}
		if ev != 0 {
			record.fired = ev
			ready.PushBack(record)
		}
	}
	ready.ForEach(func(record *fdRecord) {
		x.dispatchEvent(record, record.fired)
	})
}
