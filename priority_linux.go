//go:build linux

package pollkit

import (
	"golang.org/x/sys/unix"
)

// Nice values interpolated between the platform minimum and maximum for
// SCHED_OTHER, lowest priority first. Raising priority (negative nice)
// requires CAP_SYS_NICE; failures are ignored per the best-effort contract.
var priorityNice = [...]int{19, 9, 0, -10, -20}

// applyPriority renices the calling thread. The caller must have pinned the
// goroutine with runtime.LockOSThread for the setting to stick.
func applyPriority(p Priority) bool {
	if p < PriorityLowest || p > PriorityHighest {
		return false
	}
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), priorityNice[p]) == nil
}
