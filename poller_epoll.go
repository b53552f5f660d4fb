//go:build linux

package pollkit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollWaitEvents bounds the number of readiness events consumed per wait.
const epollWaitEvents = 1024

// pollerBackend is the epoll-backed multiplexer.
type pollerBackend struct {
	epfd int
	buf  [epollWaitEvents]unix.EpollEvent
}

func (x *Poller) backendInit() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf(`pollkit: create epoll failed: %w`, err)
	}
	x.backend.epfd = epfd
	return nil
}

func (x *Poller) backendClose() {
	if x.backend.epfd > 0 {
		_ = unix.Close(x.backend.epfd)
		x.backend.epfd = -1
	}
}

// toEpoll translates the abstract mask to epoll bits. Absent EventLT selects
// edge-triggered delivery.
func toEpoll(mask Event) uint32 {
	var events uint32
	if mask&EventRead != 0 {
		events |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		events |= unix.EPOLLOUT
	}
	if mask&EventError != 0 {
		events |= unix.EPOLLHUP | unix.EPOLLERR
	}
	if mask&EventLT == 0 {
		events |= unix.EPOLLET
	}
	return events
}

// toPollerEvent translates delivered epoll bits back to the abstract mask.
func toPollerEvent(events uint32) Event {
	var mask Event
	if events&unix.EPOLLIN != 0 {
		mask |= EventRead
	}
	if events&unix.EPOLLOUT != 0 {
		mask |= EventWrite
	}
	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		mask |= EventError
	}
	return mask
}

// addEventLoopThread performs the kernel registration, recording the callback
// only on success. Loop goroutine only.
func (x *Poller) addEventLoopThread(fd int, mask Event, cb EventCallback) error {
	ev := unix.EpollEvent{
		Events: toEpoll(mask) | unix.EPOLLEXCLUSIVE,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(x.backend.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf(`pollkit: epoll add fd %d failed: %w`, fd, err)
	}
	x.events[fd] = &fdRecord{mask: mask, cb: cb}
	return nil
}

// deleteEventLoopThread unregisters fd from the kernel and the event map.
// Loop goroutine only.
func (x *Poller) deleteEventLoopThread(fd int) bool {
	err := unix.EpollCtl(x.backend.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	_, ok := x.events[fd]
	delete(x.events, fd)
	return err == nil && ok
}

// modifyEventImpl updates the kernel-held interest bits directly; epoll_ctl
// is safe from any thread. EPOLLEXCLUSIVE is applied at add only — the kernel
// rejects it on EPOLL_CTL_MOD.
func (x *Poller) modifyEventImpl(fd int, mask Event) error {
	ev := unix.EpollEvent{
		Events: toEpoll(mask),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(x.backend.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf(`pollkit: epoll modify fd %d failed: %w`, fd, err)
	}
	return nil
}

// waitAndDispatch blocks on epoll for up to minDelay milliseconds (infinite
// when zero), then fires the callbacks of every ready descriptor. Descriptors
// delivered without a map entry are deregistered from the kernel.
func (x *Poller) waitAndDispatch(minDelay uint64) {
	timeout := -1
	if minDelay != 0 {
		timeout = int(minDelay)
	}

	x.load.StartSleep()
	n, err := unix.EpollWait(x.backend.epfd, x.backend.buf[:], timeout)
	x.load.WakeUp()
	if err != nil || n <= 0 {
		// EINTR and timeouts alike: recompute delays and wait again.
		return
	}

	for i := 0; i < n; i++ {
		ev := x.backend.buf[i]
		fd := int(ev.Fd)
		record, ok := x.events[fd]
		if !ok {
			_ = unix.EpollCtl(x.backend.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			continue
		}
		x.dispatchEvent(record, toPollerEvent(ev.Events))
	}
}
