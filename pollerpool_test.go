package pollkit

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int, registerSelf, prefer bool) *PollerPool {
	t.Helper()
	pool := newPollerPool(size, PriorityNormal, registerSelf, prefer)
	t.Cleanup(func() {
		pool.ForEach(func(p *Poller) { p.Shutdown() })
	})
	return pool
}

func TestPollerPool_basicShape(t *testing.T) {
	pool := newTestPool(t, 3, false, false)
	require.Equal(t, 3, pool.Size())
	require.Same(t, pool.executors[0], pool.GetFirstPoller())

	loads := pool.ExecutorLoads()
	require.Len(t, loads, 3)
	for _, load := range loads {
		assert.GreaterOrEqual(t, load, 0)
		assert.LessOrEqual(t, load, 100)
	}

	assert.NotNil(t, pool.GetPoller())
}

func TestPollerPool_preferCurrentThread(t *testing.T) {
	pool := newTestPool(t, 2, true, true)

	first := pool.GetFirstPoller()
	got := make(chan *Poller, 1)
	first.Async(func() { got <- pool.GetPoller() })
	select {
	case p := <-got:
		assert.Same(t, first, p, `a loop goroutine gets its own poller back`)
	case <-time.After(2 * time.Second):
		t.Fatal(`task did not run`)
	}

	// With the policy off, membership no longer short-circuits selection;
	// the result is still a pool member.
	pool.PreferCurrentThread(false)
	first.Async(func() { got <- pool.GetPoller() })
	select {
	case p := <-got:
		found := false
		pool.ForEach(func(member *Poller) { found = found || member == p })
		assert.True(t, found)
	case <-time.After(2 * time.Second):
		t.Fatal(`task did not run`)
	}
}

// Load-based routing: with one poller saturated by a tight CPU loop, new work
// routed via GetPoller avoids it.
func TestPollerPool_loadBasedRouting(t *testing.T) {
	pool := newTestPool(t, 4, false, false)

	var stop atomic.Bool
	saturated := pool.executors[0]
	saturated.Async(func() {
		for !stop.Load() {
		}
	})
	defer stop.Store(true)

	// Let the load meter observe the busy span.
	require.Eventually(t, func() bool { return saturated.Load() > 50 },
		3*time.Second, 20*time.Millisecond)

	counts := make(map[*Poller]int)
	for i := 0; i < 100; i++ {
		counts[pool.GetPoller()]++
	}
	assert.LessOrEqual(t, counts[saturated], 100/4+10,
		`saturated poller must not receive more than its fair share`)
}

func TestDefaultPoolSingletons(t *testing.T) {
	require.Same(t, DefaultPool(), DefaultPool())
	require.Same(t, WorkPool(), WorkPool())
	assert.NotSame(t, DefaultPool(), WorkPool())

	require.Greater(t, DefaultPool().Size(), 0)
	assert.Same(t, DefaultPool().GetFirstPoller(), DefaultPoller())

	// Work pool members are not discoverable via CurrentPoller.
	found := make(chan *Poller, 1)
	WorkPool().GetFirstPoller().Async(func() { found <- CurrentPoller() })
	select {
	case p := <-found:
		assert.Nil(t, p)
	case <-time.After(2 * time.Second):
		t.Fatal(`task did not run`)
	}

	// Default pool members are.
	DefaultPool().GetFirstPoller().Async(func() { found <- CurrentPoller() })
	select {
	case p := <-found:
		assert.Same(t, DefaultPool().GetFirstPoller(), p)
	case <-time.After(2 * time.Second):
		t.Fatal(`task did not run`)
	}
}
