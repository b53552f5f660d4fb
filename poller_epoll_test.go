//go:build linux

package pollkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Kernel-refused registration surfaces as an error with the event map left
// untouched.
func TestPoller_addEventKernelRefusal(t *testing.T) {
	p := newTestPoller(t)

	errCh := make(chan error, 1)
	sizeCh := make(chan int, 1)
	p.Async(func() {
		before := len(p.events)
		errCh <- p.AddEvent(-1, EventRead, func(Event) {})
		sizeCh <- len(p.events) - before
	})

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal(`task did not run`)
	}
	assert.Zero(t, <-sizeCh, `failed registration must not mutate the event map`)
}

func TestEventMaskTranslation(t *testing.T) {
	// Round trip of the deliverable bits.
	for _, mask := range []Event{EventRead, EventWrite, EventRead | EventWrite} {
		assert.Equal(t, mask, toPollerEvent(toEpoll(mask|EventLT)), `mask %v`, mask)
	}

	// Error maps to hang-up|error and back.
	assert.Equal(t, EventError, toPollerEvent(toEpoll(EventError|EventLT)))

	// The level-trigger hint is not itself a deliverable bit; its absence
	// selects edge-triggered delivery.
	assert.Equal(t, uint32(unix.EPOLLET), toEpoll(EventRead)&^toEpoll(EventRead|EventLT))
}
