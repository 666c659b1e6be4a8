package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func connectTestCluster(t *testing.T) *Cluster {
	t.Helper()
	c, err := Connect(Options{Workers: 4})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func TestSubmitResultMatchesLocal(t *testing.T) {
	c := connectTestCluster(t)
	double := func(_ context.Context, args []any) (any, error) {
		return args[0].(int) * 2, nil
	}
	require.NoError(t, c.RegisterOp("double", double))

	f, err := c.Submit("double", 21)
	require.NoError(t, err)

	v, err := c.Result(context.Background(), f)
	require.NoError(t, err)

	local, err := double(context.Background(), []any{21})
	require.NoError(t, err)
	require.Equal(t, local, v)
}

func TestSubmitUnknownOp(t *testing.T) {
	c := connectTestCluster(t)
	_, err := c.Submit("nope", 1)
	require.ErrorIs(t, err, ErrUnknownOp)
}

func TestMapPreservesOrder(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("slow_identity", func(_ context.Context, args []any) (any, error) {
		// later submissions sleep less, so completion order inverts
		time.Sleep(time.Duration(50-args[0].(int)) * time.Millisecond)
		return args[0], nil
	}))

	var argsList [][]any
	for i := 0; i < 10; i++ {
		argsList = append(argsList, []any{i * 5})
	}
	futs, err := c.Map("slow_identity", argsList)
	require.NoError(t, err)
	require.Len(t, futs, len(argsList))

	for i, f := range futs {
		v, err := c.Result(context.Background(), f)
		require.NoError(t, err)
		require.Equal(t, i*5, v)
	}
}

func TestFutureChaining(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("add", func(_ context.Context, args []any) (any, error) {
		sum := 0
		for _, a := range args {
			sum += a.(int)
		}
		return sum, nil
	}))

	a, err := c.Submit("add", 1, 2)
	require.NoError(t, err)
	b, err := c.Submit("add", 3, 4)
	require.NoError(t, err)
	// futures as args: runs after both deps resolve
	total, err := c.Submit("add", a, b)
	require.NoError(t, err)

	v, err := c.Result(context.Background(), total)
	require.NoError(t, err)
	require.Equal(t, 10, v)
}

func TestResultTwiceNoReexecution(t *testing.T) {
	c := connectTestCluster(t)
	var executions atomic.Int64
	require.NoError(t, c.RegisterOp("tracked", func(_ context.Context, args []any) (any, error) {
		executions.Add(1)
		return "done", nil
	}))

	f, err := c.Submit("tracked")
	require.NoError(t, err)

	first, err := c.Result(context.Background(), f)
	require.NoError(t, err)
	second, err := c.Result(context.Background(), f)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int64(1), executions.Load())
}

func TestResultTimeoutDoesNotCancel(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("slow", func(_ context.Context, args []any) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return 7, nil
	}))

	f, err := c.Submit("slow")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Result(ctx, f)
	require.ErrorIs(t, err, ErrResultTimeout)

	// the task keeps running and a later wait sees its value
	v, err := c.Result(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestRemoteFailureTagged(t *testing.T) {
	c := connectTestCluster(t)
	cause := errors.New("exploded")
	require.NoError(t, c.RegisterOp("explode", func(_ context.Context, args []any) (any, error) {
		return nil, cause
	}))

	f, err := c.Submit("explode")
	require.NoError(t, err)

	_, err = c.Result(context.Background(), f)
	require.ErrorIs(t, err, ErrRemoteTaskFailure)
	// original error preserved as the cause
	require.ErrorIs(t, err, cause)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	require.Equal(t, f.ID, taskErr.TaskID)
	require.NotEmpty(t, taskErr.Worker)
}

func TestDependencyFailurePropagates(t *testing.T) {
	c := connectTestCluster(t)
	cause := errors.New("bad chunk")
	require.NoError(t, c.RegisterOp("explode", func(_ context.Context, args []any) (any, error) {
		return nil, cause
	}))
	require.NoError(t, c.RegisterOp("identity", func(_ context.Context, args []any) (any, error) {
		return args[0], nil
	}))

	bad, err := c.Submit("explode")
	require.NoError(t, err)
	dependent, err := c.Submit("identity", bad)
	require.NoError(t, err)

	_, err = c.Result(context.Background(), dependent)
	require.ErrorIs(t, err, ErrRemoteTaskFailure)
	require.ErrorIs(t, err, cause)

	// the tag names the task that actually failed, not the dependent
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	require.Equal(t, bad.ID, taskErr.TaskID)
}

func TestPanicBecomesError(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("panics", func(_ context.Context, args []any) (any, error) {
		panic("boom")
	}))

	f, err := c.Submit("panics")
	require.NoError(t, err)
	_, err = c.Result(context.Background(), f)
	require.ErrorIs(t, err, ErrRemoteTaskFailure)
	require.Contains(t, err.Error(), "boom")
}

func TestCyclicDependencyRejected(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("identity", func(_ context.Context, args []any) (any, error) {
		return args[0], nil
	}))

	// Submit can only reference already-created futures, so build the cycle
	// by hand the way a buggy caller wiring futures together could.
	f1 := &Future{ID: "t_1", Op: "identity", c: c, done: make(chan struct{})}
	f2 := &Future{ID: "t_2", Op: "identity", c: c, done: make(chan struct{}), deps: []*Future{f1}}
	f1.deps = []*Future{f2}

	_, err := c.Submit("identity", f1)
	require.ErrorIs(t, err, ErrCyclicDependency)
}

func TestReleaseDiscardsHeldValue(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("identity", func(_ context.Context, args []any) (any, error) {
		return args[0], nil
	}))

	f, err := c.Submit("identity", "held")
	require.NoError(t, err)
	_, err = c.Result(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 1, c.Status().HeldValues)

	f.Release()
	require.Equal(t, 0, c.Status().HeldValues)

	_, err = c.Result(context.Background(), f)
	require.ErrorIs(t, err, ErrFutureReleased)
}

func TestReleaseBeforeResolveDiscardsValue(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("slow_work", func(_ context.Context, args []any) (any, error) {
		time.Sleep(100 * time.Millisecond)
		return args[0], nil
	}))

	f, err := c.Submit("slow_work", "orphan")
	require.NoError(t, err)

	// released while the task is still running on a worker
	f.Release()

	// the task still finishes, but its value never lands in a worker store
	_, err = c.Result(context.Background(), f)
	require.ErrorIs(t, err, ErrFutureReleased)
	require.Equal(t, 0, c.Status().HeldValues)
	require.Equal(t, int64(1), c.Status().Completed)
}

func TestMapErrorReleasesPartialBatch(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("identity", func(_ context.Context, args []any) (any, error) {
		return args[0], nil
	}))

	bad := &Future{ID: "t_x", Op: "identity", c: c, done: make(chan struct{})}
	bad.deps = []*Future{bad}

	_, err := c.Map("identity", [][]any{{"first"}, {bad}})
	require.ErrorIs(t, err, ErrCyclicDependency)

	// the future submitted before the error was released with the batch, so
	// its value is discardable without the caller ever holding it
	require.Eventually(t, func() bool {
		status := c.Status()
		return status.Completed == 1 && status.HeldValues == 0
	}, time.Second, 10*time.Millisecond)
}

func TestResultCancellationNotTimeout(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("slow_work", func(_ context.Context, args []any) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return 7, nil
	}))

	f, err := c.Submit("slow_work")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Result(ctx, f)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrResultTimeout)
}

func TestStatusCounts(t *testing.T) {
	c := connectTestCluster(t)
	require.NoError(t, c.RegisterOp("identity", func(_ context.Context, args []any) (any, error) {
		return args[0], nil
	}))
	require.NoError(t, c.RegisterOp("explode", func(_ context.Context, args []any) (any, error) {
		return nil, fmt.Errorf("nope")
	}))

	ok, err := c.Submit("identity", 1)
	require.NoError(t, err)
	bad, err := c.Submit("explode")
	require.NoError(t, err)

	_, _ = c.Result(context.Background(), ok)
	_, _ = c.Result(context.Background(), bad)

	status := c.Status()
	require.Equal(t, int64(2), status.Submitted)
	require.Equal(t, int64(1), status.Completed)
	require.Equal(t, int64(1), status.Failed)
	require.Equal(t, int64(0), status.Pending)
	require.Equal(t, 4, status.Workers)
}
