package processor

import (
	"context"
)

// Future represents the completion of a task enqueued on the processor's
// worker. Callers block only on their own future; HTTP cancellation via ctx
// abandons the wait but never cancels the enqueued work.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func failedFuture(err error) *Future {
	f := newFuture()
	f.complete(err)
	return f
}

// complete is called exactly once, by the worker.
func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the task completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the task completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task error once Done is closed.
func (f *Future) Err() error {
	return f.err
}
