package pollkit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadPool_executesAllTasks(t *testing.T) {
	pool := NewThreadPool(4, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	const tasks = 200
	var counter atomic.Int64
	var wg sync.WaitGroup
	wg.Add(tasks)
	for i := 0; i < tasks; i++ {
		op := pool.Async(func() {
			defer wg.Done()
			counter.Add(1)
		})
		require.NotNil(t, op, `submission from a foreign goroutine must queue`)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal(`tasks did not complete`)
	}
	assert.Equal(t, int64(tasks), counter.Load())
}

func TestThreadPool_inlineFromWorker(t *testing.T) {
	pool := NewThreadPool(1, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	type result struct {
		op     *Operation
		inline bool
	}
	resCh := make(chan result, 1)
	pool.Async(func() {
		ran := false
		op := pool.Async(func() { ran = true })
		resCh <- result{op: op, inline: ran}
	})

	select {
	case res := <-resCh:
		assert.Nil(t, res.op, `worker-origin submission returns no handle`)
		assert.True(t, res.inline, `worker-origin submission executes synchronously`)
	case <-time.After(2 * time.Second):
		t.Fatal(`task did not run`)
	}
}

func TestThreadPool_maySyncOptOut(t *testing.T) {
	pool := NewThreadPool(2, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	done := make(chan struct{})
	opCh := make(chan *Operation, 1)
	pool.Async(func() {
		opCh <- pool.AsyncMaySync(func() { close(done) }, false)
	})

	select {
	case op := <-opCh:
		assert.NotNil(t, op, `opted-out submission must queue even from a worker`)
	case <-time.After(2 * time.Second):
		t.Fatal(`submitting task did not run`)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal(`queued task did not run`)
	}
}

func TestThreadPool_cancelBeforeDispatch(t *testing.T) {
	pool := NewThreadPool(1, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	block := make(chan struct{})
	pool.Async(func() { <-block })

	var ran atomic.Bool
	op := pool.Async(func() { ran.Store(true) })
	require.NotNil(t, op)
	op.Cancel()

	marker := make(chan struct{})
	pool.Async(func() { close(marker) })

	close(block)
	select {
	case <-marker:
	case <-time.After(2 * time.Second):
		t.Fatal(`marker task did not run`)
	}
	assert.False(t, ran.Load(), `cancelled task must not execute`)
}

func TestThreadPool_asyncFirstRunsAhead(t *testing.T) {
	pool := NewThreadPool(1, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	block := make(chan struct{})
	pool.Async(func() { <-block })

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	pool.AsyncMaySync(record(`tail`), false)
	pool.AsyncFirstMaySync(record(`head`), false)

	done := make(chan struct{})
	pool.AsyncMaySync(func() { close(done) }, false)

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal(`tasks did not drain`)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{`head`, `tail`}, order)
}

func TestThreadPool_panicDoesNotKillWorker(t *testing.T) {
	pool := NewThreadPool(1, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	pool.Async(func() { panic(`boom`) })

	done := make(chan struct{})
	pool.Async(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal(`worker died on a panicking task`)
	}
}

func TestThreadPool_shutdownReleasesWorkers(t *testing.T) {
	pool := NewThreadPool(4, PriorityNormal, true)
	pool.Shutdown()
	done := make(chan error, 1)
	go func() { done <- pool.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal(`workers did not exit after shutdown`)
	}
	// Double shutdown is harmless.
	pool.Shutdown()
}

func TestThreadPool_syncHelper(t *testing.T) {
	pool := NewThreadPool(2, PriorityNormal, true)
	defer func() { require.NoError(t, pool.Close()) }()

	value := 0
	Sync(pool, func() { value = 42 })
	assert.Equal(t, 42, value)

	SyncFirst(pool, func() { value = 43 })
	assert.Equal(t, 43, value)
}
