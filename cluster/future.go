package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrRemoteTaskFailure wraps an error raised by a task while it ran on a
	// worker, tagged with the task and worker that produced it.
	ErrRemoteTaskFailure = errors.New("remote task failed")

	// ErrResultTimeout means the caller gave up waiting. The task itself is
	// not cancelled and may still resolve.
	ErrResultTimeout = errors.New("timed out waiting for result")

	ErrFutureReleased = errors.New("future already released")
)

type (
	// Future is a handle to a value computed asynchronously on a worker. It
	// transitions from pending to resolved or failed exactly once; the
	// value stays on its worker until the future is released.
	Future struct {
		ID string
		Op string

		c    *Cluster
		deps []*Future
		done chan struct{}

		mu       sync.Mutex
		value    any
		err      error
		workerID string
		refs     int
		released bool
	}

	TaskError struct {
		TaskID string
		Op     string
		Worker string
		Cause  error
	}
)

func (e *TaskError) Error() string {
	return fmt.Sprintf("remote task failed: task %s (op %s) on worker %q: %v", e.TaskID, e.Op, e.Worker, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

func (e *TaskError) Is(target error) bool {
	return target == ErrRemoteTaskFailure
}

// Result blocks until the future resolves or ctx expires. A failed task's
// error is re-raised here with its task/worker tag; expiry returns
// ErrResultTimeout without cancelling the task. Calling Result again returns
// the same value with no re-execution. This is the one place remote values
// transfer to the caller; everything else keeps data on workers.
func (c *Cluster) Result(ctx context.Context, f *Future) (any, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: task %s (op %s)", ErrResultTimeout, f.ID, f.Op)
		}
		return nil, fmt.Errorf("error waiting for task %s (op %s): %w", f.ID, f.Op, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.released {
		return nil, fmt.Errorf("%w: task %s", ErrFutureReleased, f.ID)
	}
	return f.value, nil
}

// ResultTimeout is Result with a plain duration for callers without a
// context.
func (c *Cluster) ResultTimeout(f *Future, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Result(ctx, f)
}

// Release drops the caller's reference. Once no dependent task references
// the future either, its value is discarded from the owning worker. This is
// the only cancellation signal the cluster has.
func (f *Future) Release() {
	f.deref()
}

func (f *Future) addRef() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs++
}

func (f *Future) deref() {
	f.mu.Lock()
	f.refs--
	drop := f.refs <= 0 && !f.released
	var workerID string
	if drop {
		f.released = true
		f.value = nil
		// empty until the task reaches a worker
		workerID = f.workerID
	}
	f.mu.Unlock()
	if drop {
		f.c.discard(workerID, f.ID)
	}
}

func (f *Future) failWith(workerID string, err error) {
	f.mu.Lock()
	f.workerID = workerID
	f.err = err
	f.mu.Unlock()
	close(f.done)
}

// failure returns the task's error, nil while pending or on success.
func (f *Future) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// peek returns the resolved value. Only valid once done is closed.
func (f *Future) peek() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}
