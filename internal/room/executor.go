package room

import (
	"context"
	"sync"
)

// executor runs tasks one at a time in post order on its own goroutine.
// post never blocks, so pion and relay callbacks can hand work over freely.
type executor struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newExecutor() *executor {
	e := &executor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

// post queues fn. It reports false once the executor has been stopped.
func (e *executor) post(fn func()) bool {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	e.tasks = append(e.tasks, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// call runs fn on the executor and waits for its result. It must not be
// used from a task.
func (e *executor) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if !e.post(func() { res <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop lets queued tasks finish and then ends the goroutine.
func (e *executor) stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			stopped := e.stopped
			e.mu.Unlock()
			if stopped {
				return
			}
			<-e.wake
			continue
		}
		fn := e.tasks[0]
		e.tasks[0] = nil
		e.tasks = e.tasks[1:]
		e.mu.Unlock()

		fn()
	}
}
