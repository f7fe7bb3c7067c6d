// Package limiter provides a bounded-concurrency task queue used to
// serialize and throttle asynchronous work, such as streamed edit
// application against open documents.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDisposed is returned by futures of tasks submitted after Dispose.
	ErrDisposed = errors.New("limiter: disposed")
	// ErrCleared is returned by futures of queued tasks dropped by Clear or Dispose.
	ErrCleared = errors.New("limiter: task cleared before start")
)

// Task is a unit of asynchronous work submitted to a Limiter.
type Task func(ctx context.Context) (interface{}, error)

// Future carries the eventual outcome of a submitted task.
// Every future settles exactly once: with the task's own result, with
// ErrCleared if the task was dropped before starting, or with ErrDisposed
// if it was submitted to a disposed limiter.
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value interface{}, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future settles and returns its outcome.
func (f *Future) Result() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

// Wait blocks until the future settles or ctx is done, whichever comes
// first. A ctx expiry does not settle the future; the task keeps running.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pendingTask struct {
	ctx    context.Context
	task   Task
	future *Future
}

// Limiter runs submitted tasks with at most a fixed number in flight.
// Queued tasks start in submission order; completion order depends on each
// task's own latency. Queue and counter mutation is mutex-protected, so a
// Limiter is safe for use from multiple goroutines.
type Limiter struct {
	mu       sync.Mutex
	max      int
	running  int
	queue    []pendingTask
	disposed bool
	drained  chan struct{}
}

// New creates a limiter that runs at most maxParallelism tasks concurrently.
// Values below 1 are treated as 1.
func New(maxParallelism int) *Limiter {
	if maxParallelism < 1 {
		maxParallelism = 1
	}
	return &Limiter{max: maxParallelism}
}

// NewSerializer creates a limiter with a degree of parallelism of one,
// so submitted tasks run strictly one at a time in submission order.
func NewSerializer() *Limiter {
	return New(1)
}

// Submit enqueues task and returns a future settled with the task's own
// outcome. The task receives ctx when it starts; if ctx is already done by
// then, the task is skipped and its future settles with ctx.Err().
// Submitting to a disposed limiter returns a future already settled with
// ErrDisposed.
func (l *Limiter) Submit(ctx context.Context, task Task) *Future {
	future := newFuture()
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		future.settle(nil, ErrDisposed)
		return future
	}
	l.queue = append(l.queue, pendingTask{ctx: ctx, task: task, future: future})
	l.drainLocked()
	l.mu.Unlock()

	return future
}

// Size reports the number of tasks submitted but not yet completed
// (queued plus running).
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + l.running
}

// Clear drops all queued tasks that have not started. Their futures settle
// with ErrCleared. Running tasks are unaffected.
func (l *Limiter) Clear() {
	l.mu.Lock()
	dropped := l.queue
	l.queue = nil
	l.notifyDrainedLocked()
	l.mu.Unlock()

	for _, p := range dropped {
		p.future.settle(nil, ErrCleared)
	}
}

// Dispose marks the limiter disposed and drops the pending queue, settling
// the dropped futures with ErrCleared. Tasks already running complete
// normally. Subsequent Submit calls fail with ErrDisposed. Dispose is
// idempotent.
func (l *Limiter) Dispose() {
	l.mu.Lock()
	l.disposed = true
	dropped := l.queue
	l.queue = nil
	l.notifyDrainedLocked()
	l.mu.Unlock()

	for _, p := range dropped {
		p.future.settle(nil, ErrCleared)
	}
}

// Drained returns a channel closed when the limiter has no queued or
// running tasks. An idle limiter returns an already-closed channel.
func (l *Limiter) Drained() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.idleLocked() {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	if l.drained == nil {
		l.drained = make(chan struct{})
	}
	return l.drained
}

// WhenDrained blocks until the limiter drains or ctx is done.
func (l *Limiter) WhenDrained(ctx context.Context) error {
	select {
	case <-l.Drained():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) idleLocked() bool {
	return len(l.queue) == 0 && l.running == 0
}

func (l *Limiter) notifyDrainedLocked() {
	if l.drained != nil && l.idleLocked() {
		close(l.drained)
		l.drained = nil
	}
}

// drainLocked starts queued tasks until the queue empties or the
// concurrency ceiling is reached. Callers must hold l.mu.
func (l *Limiter) drainLocked() {
	for l.running < l.max && len(l.queue) > 0 {
		next := l.queue[0]
		l.queue[0] = pendingTask{}
		l.queue = l.queue[1:]
		l.running++
		go l.consume(next)
	}
}

func (l *Limiter) consume(p pendingTask) {
	var (
		value interface{}
		err   error
	)
	if err = p.ctx.Err(); err == nil {
		value, err = invoke(p.ctx, p.task)
	}

	// Release capacity before settling so a settled future is never still
	// counted by Size.
	l.mu.Lock()
	l.running--
	l.drainLocked()
	l.notifyDrainedLocked()
	l.mu.Unlock()

	p.future.settle(value, err)
}

// invoke runs the task, converting a panic into that task's error so one
// misbehaving task cannot take down the limiter.
func invoke(ctx context.Context, task Task) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}
