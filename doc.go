// Package pollkit implements a reactor-style event loop toolkit: per-thread
// event pollers multiplexing file descriptor readiness, asynchronously
// submitted tasks, and delayed tasks over a single kernel multiplexer, plus
// the cooperative task machinery built around them.
//
// The core pieces are:
//
//   - [Poller], a single-goroutine reactor combining an epoll (or select)
//     wait, a cross-goroutine task inbox signalled via a self-pipe, and an
//     ordered map of delayed operations.
//   - [DefaultPool] and [WorkPool], process-wide pools of pollers that route
//     new work to the least-loaded member, the latter at reduced priority for
//     blocking or CPU-bound offload.
//   - [ThreadPool], a semaphore-gated FIFO/LIFO task queue with a fixed set
//     of workers.
//   - [ReusePool], a bounded free list recycling short-lived objects through
//     handles with an opt-out "quit" flag.
//
// Tasks within one poller are serialized on its loop goroutine; tasks across
// pollers run in parallel. Nothing is preemptible: long-running callbacks
// starve their poller, so blocking work belongs on [WorkPool].
//
// Structured logging uses logiface; see [SetLogger]. The package logs nothing
// until a logger is provided.
package pollkit
