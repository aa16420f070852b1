// Package pool implements a fixed-size worker pool for running a batch of
// docking tasks (grid-map slab construction, Monte Carlo restarts) to
// completion.
//
// The pool accepts exactly one outstanding batch at a time: SubmitBatch
// dispatches work to the pool's workers and returns immediately, Wait blocks
// until every task in that batch has either returned or panicked. This
// mirrors the original idock thread_pool's run()/sync() discipline (a
// batch's task counters are reset on every run() call, and sync() blocks
// until num_completed_tasks reaches num_tasks) and the newer
// io_service_pool+safe_counter variant seen in
// _examples/original_source/idock/src/thread_pool.cpp and
// _examples/original_source/idock/src/main.cpp — both reduce to "fixed
// worker set, batch submit, counter-gated wait", which Pool reproduces with
// Go channels and a sync.WaitGroup instead of Boost condition variables.
package pool

import (
	"sync"

	"github.com/turtacn/idock-worker/pkg/errors"
)

// ErrBatchInFlight is returned by SubmitBatch when a previous batch has not
// yet been drained by Wait.
var ErrBatchInFlight = errors.New(errors.CodeConflict, "pool: a batch is already in flight")

// Pool is a fixed-size set of worker goroutines that execute one batch of
// tasks at a time.
type Pool struct {
	jobs chan indexedTask

	mu        sync.Mutex
	inFlight  bool
	errs      []error
	wg        sync.WaitGroup
}

type indexedTask struct {
	index int
	fn    func() error
}

// New constructs a Pool with numWorkers long-lived worker goroutines.
func New(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	p := &Pool{jobs: make(chan indexedTask)}
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for it := range p.jobs {
		err := runTask(it.fn)
		p.mu.Lock()
		p.errs[it.index] = err
		p.mu.Unlock()
		p.wg.Done()
	}
}

func runTask(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Wrap(toError(rec), errors.CodeTaskPanic, "pool task panicked")
		}
	}()
	return fn()
}

func toError(rec interface{}) error {
	if e, ok := rec.(error); ok {
		return e
	}
	return errors.New(errors.CodeTaskPanic, recoveredMessage(rec))
}

func recoveredMessage(rec interface{}) string {
	switch v := rec.(type) {
	case string:
		return v
	default:
		return "panic: non-error recovered value"
	}
}

// SubmitBatch hands tasks to the pool's workers from a background goroutine
// and returns immediately, before the hand-off or any task completes. It returns
// ErrBatchInFlight if a previously submitted batch has not yet been drained
// by Wait.
func (p *Pool) SubmitBatch(tasks []func() error) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrBatchInFlight
	}
	p.inFlight = true
	p.errs = make([]error, len(tasks))
	p.mu.Unlock()

	p.wg.Add(len(tasks))
	go func() {
		for i, fn := range tasks {
			p.jobs <- indexedTask{index: i, fn: fn}
		}
	}()

	return nil
}

// Wait blocks until every task in the current batch has completed, then
// returns one error per task in submission order (nil entries for tasks
// that succeeded). Wait clears the in-flight flag so a new batch may be
// submitted afterward. The returned slice is all-nil iff every task
// succeeded.
func (p *Pool) Wait() []error {
	p.wg.Wait()

	p.mu.Lock()
	errs := p.errs
	p.inFlight = false
	p.errs = nil
	p.mu.Unlock()

	return errs
}

// Close shuts down the pool's worker goroutines. Close must not be called
// while a batch is in flight.
func (p *Pool) Close() {
	close(p.jobs)
}
