package rampselect

import (
	"container/heap"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work submitted to an Executor.
type Task func()

// Handle is a cancellable handle to a periodic scheduling registration.
// Implementations must never panic on a second Cancel call; callers of
// this package must never call Cancel more than once per handle, per the
// scheduling contract this type satisfies.
type Handle interface {
	// Cancel stops future fires of the scheduled task. mayInterruptIfRunning
	// is advisory only - cancellation is always best-effort and never
	// preempts a fire already in progress. Returns true the first time it
	// actually cancels a pending registration.
	Cancel(mayInterruptIfRunning bool) bool
}

// Executor is a single-threaded cooperative scheduler: every Task submitted
// to it, whether via Execute or a firing ScheduleAtFixedRate registration,
// runs serially on the same goroutine, never overlapping with another Task
// from the same Executor. Submitting from any goroutine is safe.
type Executor interface {
	// Execute enqueues task for serial execution, returning an error if
	// the executor has already been shut down.
	Execute(task Task) error

	// ScheduleAtFixedRate schedules task to run every period, starting
	// after initialDelay. The returned Handle's Cancel stops future fires;
	// it never interrupts one already in progress.
	ScheduleAtFixedRate(task Task, initialDelay, period time.Duration) (Handle, error)
}

// ErrExecutorClosed is returned by loopExecutor methods once Close has run.
var ErrExecutorClosed = errors.New("rampselect: executor is closed")

// scheduledEntry is one pending periodic registration, ordered by next.
type scheduledEntry struct {
	task     Task
	period   time.Duration
	next     time.Time
	canceled atomic.Bool
}

type scheduleHeap []*scheduledEntry

func (h scheduleHeap) Len() int            { return len(h) }
func (h scheduleHeap) Less(i, j int) bool  { return h[i].next.Before(h[j].next) }
func (h scheduleHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scheduleHeap) Push(x any)         { *h = append(*h, x.(*scheduledEntry)) }
func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

type scheduleHandle struct{ entry *scheduledEntry }

func (h *scheduleHandle) Cancel(bool) bool {
	return !h.entry.canceled.Swap(true)
}

// loopExecutor is the default Executor: a single owning goroutine running a
// select loop over an external task queue and a min-heap of periodic
// registrations, grounded on microbatch.Batcher's single-owner run() loop
// and eventloop.Loop's timer-heap split between submission (any goroutine)
// and firing (loop goroutine only).
type loopExecutor struct {
	tasks         chan Task
	registrations chan *scheduledEntry
	closeCh       chan struct{}
	doneCh        chan struct{}
	closeOnce     sync.Once

	// onPanic, if non-nil, is invoked (from the loop goroutine, with the
	// recovered value) whenever a Task panics. If nil, the panic is
	// logged via the standard logger instead of crashing the loop.
	onPanic func(recovered any)
}

// NewExecutor constructs the default single-goroutine Executor
// implementation. Callers own its lifecycle: call Close when done. onPanic,
// if non-nil, is called with whatever a submitted Task recovered from - see
// safeExecute.
func NewExecutor(onPanic func(recovered any)) *loopExecutor {
	e := &loopExecutor{
		tasks:         make(chan Task, 64),
		registrations: make(chan *scheduledEntry, 16),
		closeCh:       make(chan struct{}),
		doneCh:        make(chan struct{}),
		onPanic:       onPanic,
	}
	go e.run()
	return e
}

// safeExecute runs task with panic recovery, so a single bad Task - a bug
// in caller code, or a user-supplied hook invoked from one - never takes
// down the loop goroutine. Mirrors eventloop.Loop's safeExecute/safeExecuteFn.
func (e *loopExecutor) safeExecute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			if e.onPanic != nil {
				e.onPanic(r)
			} else {
				log.Printf("rampselect: executor: task panicked: %v", r)
			}
		}
	}()
	task()
}

func (e *loopExecutor) Execute(task Task) error {
	select {
	case <-e.closeCh:
		return ErrExecutorClosed
	default:
	}
	select {
	case <-e.closeCh:
		return ErrExecutorClosed
	case e.tasks <- task:
		return nil
	}
}

func (e *loopExecutor) ScheduleAtFixedRate(task Task, initialDelay, period time.Duration) (Handle, error) {
	if period <= 0 {
		return nil, errors.New("rampselect: period must be > 0")
	}
	entry := &scheduledEntry{task: task, period: period, next: time.Now().Add(initialDelay)}
	select {
	case <-e.closeCh:
		return nil, ErrExecutorClosed
	case e.registrations <- entry:
		return &scheduleHandle{entry: entry}, nil
	}
}

// Close stops the executor, waiting for the loop goroutine to exit. Already
// queued tasks that haven't started are discarded; a task in progress is
// allowed to finish. Idempotent.
func (e *loopExecutor) Close() error {
	e.closeOnce.Do(func() { close(e.closeCh) })
	<-e.doneCh
	return nil
}

func (e *loopExecutor) run() {
	defer close(e.doneCh)

	var pending scheduleHeap
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	resetTimer := func() {
		if len(pending) == 0 {
			timer.Stop()
			return
		}
		d := time.Until(pending[0].next)
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
	}

	for {
		select {
		case <-e.closeCh:
			return

		case task := <-e.tasks:
			e.safeExecute(task)

		case entry := <-e.registrations:
			heap.Push(&pending, entry)
			resetTimer()

		case <-timer.C:
			now := time.Now()
			for len(pending) > 0 && !pending[0].next.After(now) {
				entry := heap.Pop(&pending).(*scheduledEntry)
				if entry.canceled.Load() {
					continue
				}
				e.safeExecute(entry.task)
				if entry.canceled.Load() {
					continue
				}
				entry.next = entry.next.Add(entry.period)
				heap.Push(&pending, entry)
			}
			resetTimer()
		}
	}
}
