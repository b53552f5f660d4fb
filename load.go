package pollkit

import (
	"sync"
)

const (
	defaultLoadMaxSize = 32
	defaultLoadMaxUsec = 2 * 1000 * 1000
)

// timeRecord is one rolling sample: how long the meter spent in the state it
// just left.
type timeRecord struct {
	duration uint64
	sleeping bool
}

// LoadMeter derives an integer load percentage from a rolling window of
// sleep/run transitions. The owning executor calls StartSleep immediately
// before blocking and WakeUp immediately after; Load may be called from any
// goroutine.
//
// The window is bounded twice over: at most maxSize samples, covering at most
// maxUsec microseconds. Load trims the head until both hold.
type LoadMeter struct {
	mu            sync.Mutex
	records       List[timeRecord]
	lastSleepTime uint64
	lastWakeTime  uint64
	sleeping      bool
	maxSize       int
	maxUsec       uint64
}

// newLoadMeter returns a meter considered asleep since now. Zero arguments
// select the defaults (32 samples over 2 seconds).
func newLoadMeter(maxSize int, maxUsec uint64) *LoadMeter {
	if maxSize <= 0 {
		maxSize = defaultLoadMaxSize
	}
	if maxUsec == 0 {
		maxUsec = defaultLoadMaxUsec
	}
	now := CurrentMicrosecond()
	return &LoadMeter{
		lastSleepTime: now,
		lastWakeTime:  now,
		sleeping:      true,
		maxSize:       maxSize,
		maxUsec:       maxUsec,
	}
}

// StartSleep records the end of a run span.
func (x *LoadMeter) StartSleep() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.sleeping = true
	now := CurrentMicrosecond()
	x.records.PushBack(timeRecord{duration: now - x.lastWakeTime, sleeping: false})
	x.lastSleepTime = now
	if x.records.Len() > x.maxSize {
		x.records.PopFront()
	}
}

// WakeUp records the end of a sleep span.
func (x *LoadMeter) WakeUp() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.sleeping = false
	now := CurrentMicrosecond()
	x.records.PushBack(timeRecord{duration: now - x.lastSleepTime, sleeping: true})
	x.lastWakeTime = now
	if x.records.Len() > x.maxSize {
		x.records.PopFront()
	}
}

// Load returns run time as an integer percentage of total time over the
// retained window, 0 when no time has been observed.
func (x *LoadMeter) Load() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	var totalSleep, totalRun uint64
	x.records.ForEach(func(r timeRecord) {
		if r.sleeping {
			totalSleep += r.duration
		} else {
			totalRun += r.duration
		}
	})

	// The in-progress span counts too, so a poller stuck in a long callback
	// reports high load before the span is ever recorded.
	if x.sleeping {
		totalSleep += CurrentMicrosecond() - x.lastSleepTime
	} else {
		totalRun += CurrentMicrosecond() - x.lastWakeTime
	}

	total := totalRun + totalSleep
	for !x.records.Empty() && (total > x.maxUsec || x.records.Len() > x.maxSize) {
		r, _ := x.records.Front()
		if r.sleeping {
			totalSleep -= r.duration
		} else {
			totalRun -= r.duration
		}
		total -= r.duration
		x.records.PopFront()
	}
	if total == 0 {
		return 0
	}
	return int(totalRun * 100 / total)
}
