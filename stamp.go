package pollkit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Process-wide timestamp state. A background goroutine refreshes two pairs of
// counters every ~500µs: a monotonic elapsed clock that only ever advances by
// deltas in (0, 1s) — larger jumps are treated as wall-clock adjustments and
// rejected — and the current system time, which may go backwards.
var (
	stampOnce sync.Once

	currentMicrosecond       atomic.Uint64
	currentMillisecond       atomic.Uint64
	currentMicrosecondSystem atomic.Uint64
	currentMillisecondSystem atomic.Uint64
)

const (
	stampInterval = 500 * time.Microsecond

	// maxStampDelta bounds a believable refresh gap, in microseconds.
	// Anything larger is assumed to be a clock adjustment.
	maxStampDelta = 1000 * 1000
)

func systemMicrosecond() uint64 {
	return uint64(time.Now().UnixMicro())
}

func startStampThread() {
	stampOnce.Do(func() {
		now := systemMicrosecond()
		currentMicrosecondSystem.Store(now)
		currentMillisecondSystem.Store(now / 1000)
		go func() {
			last := systemMicrosecond()
			var elapsed uint64
			for {
				now := systemMicrosecond()
				currentMicrosecondSystem.Store(now)
				currentMillisecondSystem.Store(now / 1000)

				delta := int64(now) - int64(last)
				last = now
				if delta > 0 && delta < maxStampDelta {
					elapsed += uint64(delta)
					currentMicrosecond.Store(elapsed)
					currentMillisecond.Store(elapsed / 1000)
				} else if delta != 0 {
					logger().Debug().
						Int64(`delta_usec`, delta).
						Log(`stamp: clock adjustment rejected`)
				}

				time.Sleep(stampInterval)
			}
		}()
	})
}

// CurrentMillisecond returns the process's monotonic elapsed time in
// milliseconds. It is immune to wall-clock adjustment, and starts at zero on
// first use of the package's timing facilities.
func CurrentMillisecond() uint64 {
	startStampThread()
	return currentMillisecond.Load()
}

// CurrentMicrosecond returns the process's monotonic elapsed time in
// microseconds.
func CurrentMicrosecond() uint64 {
	startStampThread()
	return currentMicrosecond.Load()
}

// CurrentMillisecondSystem returns the current system time in milliseconds
// since the Unix epoch. Unlike [CurrentMillisecond] it follows wall-clock
// adjustments.
func CurrentMillisecondSystem() uint64 {
	startStampThread()
	return currentMillisecondSystem.Load()
}

// CurrentMicrosecondSystem returns the current system time in microseconds
// since the Unix epoch.
func CurrentMicrosecondSystem() uint64 {
	startStampThread()
	return currentMicrosecondSystem.Load()
}
