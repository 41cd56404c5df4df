// Package taskqueue implements the single-writer serialized scheduler of
// spec.md §4.5: every mutating operation (put family, delete, sync
// worker, push worker) runs strictly one at a time, in FIFO order, with
// sync/push tasks from the interval timer allowed to jump the queue.
package taskqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Func is the body of one queued task. ctx is canceled if the task is
// still pending when Stop is called; a running task's ctx is not
// canceled (spec.md §4.5: "The running task is not interrupted").
type Func func(ctx context.Context) (any, error)

// EnqueueInfo is delivered synchronously to a task's EnqueueCallback the
// moment it is accepted (spec.md §4.5).
type EnqueueInfo struct {
	TaskId      string
	Label       string
	EnqueueTime time.Time
}

// Future resolves to a task's result once its Func has returned.
type Future struct {
	done   chan struct{}
	result any
	err    error
}

// Wait blocks until the task completes or ctx is canceled.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(result any, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// SubmitOptions configures one Submit call.
type SubmitOptions struct {
	TargetId        string
	EnqueueCallback func(EnqueueInfo)
	// Unshift places the task at the queue head (behind any currently
	// running task), used for interval-timer-driven sync tasks
	// (spec.md §4.5).
	Unshift bool
}

type task struct {
	label       string
	taskId      string
	targetId    string
	fn          Func
	future      *Future
	enqueueTime time.Time
	ctx         context.Context
	cancelFn    context.CancelFunc
}

// Queue is one database's Task Queue. The zero value is not usable; use
// New.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []*task
	running   *task
	closing   bool
	stopped   bool
	nextId    uint64
	drainedCh chan struct{}
}

// New returns a Queue with its worker loop already running in the
// background.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *Queue) nextTaskId() string {
	n := atomic.AddUint64(&q.nextId, 1)
	return "task-" + itoa(n)
}

// itoa avoids pulling in strconv for one call site's formatting needs at
// the hot submission path; kept tiny and obviously correct.
func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Submit enqueues fn under label and returns a Future for its result. An
// empty SubmitOptions behaves as plain FIFO submission.
func (q *Queue) Submit(label string, fn Func, opts SubmitOptions) (*Future, error) {
	q.mu.Lock()
	if q.closing {
		q.mu.Unlock()
		return nil, ErrDatabaseClosing
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		label:       label,
		taskId:      q.nextTaskId(),
		targetId:    opts.TargetId,
		fn:          fn,
		future:      &Future{done: make(chan struct{})},
		enqueueTime: time.Now(),
		ctx:         ctx,
		cancelFn:    cancel,
	}
	if opts.Unshift {
		q.items = append([]*task{t}, q.items...)
	} else {
		q.items = append(q.items, t)
	}
	q.cond.Signal()
	q.mu.Unlock()

	if opts.EnqueueCallback != nil {
		opts.EnqueueCallback(EnqueueInfo{TaskId: t.taskId, Label: t.label, EnqueueTime: t.enqueueTime})
	}
	return t.future, nil
}

// loop is the single worker goroutine: it is the only place task.fn is
// ever invoked, which is what makes the queue single-writer.
func (q *Queue) loop() {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped && len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.items[0]
		q.items = q.items[1:]
		q.running = t
		q.mu.Unlock()

		result, err := t.fn(t.ctx)
		t.future.resolve(result, err)

		q.mu.Lock()
		q.running = nil
		if q.closing && len(q.items) == 0 {
			q.signalDrained()
		}
		q.mu.Unlock()
	}
}

// signalDrained must be called with q.mu held.
func (q *Queue) signalDrained() {
	if q.drainedCh != nil {
		close(q.drainedCh)
		q.drainedCh = nil
	}
}

// Stop drains the queue: every pending task's future rejects with
// ErrTaskCancel, and its ctx is canceled. The currently running task (if
// any) is awaited to completion, per spec.md §4.5.
func (q *Queue) Stop() {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	running := q.running
	q.mu.Unlock()

	for _, t := range pending {
		t.cancelFn()
		t.future.resolve(nil, ErrTaskCancel)
	}
	if running != nil {
		<-running.future.done
	}
}

// Close marks the database closing (new Submit calls reject with
// ErrDatabaseClosing), waits up to timeout for the queue to drain
// naturally, and returns ErrDatabaseCloseTimeout if it does not.
// timeout <= 0 waits indefinitely.
func (q *Queue) Close(timeout time.Duration) error {
	q.mu.Lock()
	q.closing = true
	if len(q.items) == 0 && q.running == nil {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.drainedCh = ch
	q.mu.Unlock()

	if timeout <= 0 {
		<-ch
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return ErrDatabaseCloseTimeout
	}
}

// Destroy stops the worker loop outright; pending tasks are canceled as
// in Stop. Call after Close (or instead of it, when force-closing).
func (q *Queue) Destroy() {
	q.Stop()
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Len reports the number of pending (not-yet-started) tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
