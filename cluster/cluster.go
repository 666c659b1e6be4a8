package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rowboatdb/rowboat/gologger"
	"github.com/rowboatdb/rowboat/utils"
)

var (
	logger = gologger.NewComponentLogger("cluster")

	ErrNotConnected     = errors.New("cluster not connected")
	ErrUnknownOp        = errors.New("unknown op")
	ErrOpExists         = errors.New("op already registered")
	ErrCyclicDependency = errors.New("cyclic dependency between submitted tasks")
)

type (
	// OpFunc is one task variant the cluster knows how to run. Args arrive
	// with any Future dependencies already replaced by their resolved values.
	OpFunc func(ctx context.Context, args []any) (any, error)

	Options struct {
		// Workers is the size of the worker pool. Defaults to
		// CLUSTER_WORKERS.
		Workers int
	}

	// Cluster is an in-process execution service: a pool of workers running
	// named tasks submitted as a dependency DAG of futures. Explicit
	// Connect/Shutdown lifecycle so callers inject it rather than reach for
	// a process global.
	Cluster struct {
		pool    *ants.Pool
		workers []string
		rr      uint64

		opsMu sync.RWMutex
		ops   map[string]OpFunc

		storeMu sync.Mutex
		// store holds each resolved value on exactly one worker until the
		// owning future is released
		store map[string]map[string]any

		submitted atomic.Int64
		completed atomic.Int64
		failed    atomic.Int64
		pending   atomic.Int64

		shutdownCh chan struct{}
		closeOnce  sync.Once
	}

	ClusterStatus struct {
		Workers    int      `json:"workers"`
		WorkerIDs  []string `json:"workerIDs"`
		Running    int      `json:"running"`
		Pending    int64    `json:"pending"`
		Submitted  int64    `json:"submitted"`
		Completed  int64    `json:"completed"`
		Failed     int64    `json:"failed"`
		HeldValues int      `json:"heldValues"`
	}
)

// Connect starts the worker pool and returns a connected cluster.
func Connect(opts Options) (*Cluster, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = int(utils.CLUSTER_WORKERS)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("error in ants.NewPool: %w", err)
	}

	c := &Cluster{
		pool:       pool,
		ops:        make(map[string]OpFunc),
		store:      make(map[string]map[string]any),
		shutdownCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		id := utils.GenRandomShortID()
		c.workers = append(c.workers, "w_"+id)
		c.store["w_"+id] = make(map[string]any)
	}

	logger.Debug().Int("workers", workers).Msg("cluster connected")
	return c, nil
}

// Shutdown drains the pool. In-flight tasks finish, queued tasks fail.
func (c *Cluster) Shutdown(ctx context.Context) error {
	c.closeOnce.Do(func() {
		close(c.shutdownCh)
	})
	deadline := time.Second * 5
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	if err := c.pool.ReleaseTimeout(deadline); err != nil {
		return fmt.Errorf("error in pool.ReleaseTimeout: %w", err)
	}
	logger.Debug().Msg("cluster shut down")
	return nil
}

// RegisterOp adds a named task variant. The op set is closed per cluster:
// submissions can only reference registered names.
func (c *Cluster) RegisterOp(name string, fn OpFunc) error {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	if _, exists := c.ops[name]; exists {
		return fmt.Errorf("%w: %s", ErrOpExists, name)
	}
	c.ops[name] = fn
	return nil
}

func (c *Cluster) DeregisterOp(name string) {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	delete(c.ops, name)
}

func (c *Cluster) op(name string) (OpFunc, bool) {
	c.opsMu.RLock()
	defer c.opsMu.RUnlock()
	fn, exists := c.ops[name]
	return fn, exists
}

func (c *Cluster) Status() ClusterStatus {
	c.storeMu.Lock()
	held := 0
	for _, ws := range c.store {
		held += len(ws)
	}
	c.storeMu.Unlock()
	return ClusterStatus{
		Workers:    len(c.workers),
		WorkerIDs:  c.workers,
		Running:    c.pool.Running(),
		Pending:    c.pending.Load(),
		Submitted:  c.submitted.Load(),
		Completed:  c.completed.Load(),
		Failed:     c.failed.Load(),
		HeldValues: held,
	}
}

// Submit schedules op with the given args. Args may be *Future values, in
// which case the task runs only after those dependencies resolve. Remote
// failures are never observed here, only at Result; the only fast failures
// are an unknown op and a cyclic dependency chain.
func (c *Cluster) Submit(op string, args ...any) (*Future, error) {
	select {
	case <-c.shutdownCh:
		return nil, ErrNotConnected
	default:
	}

	fn, exists := c.op(op)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}

	var deps []*Future
	for _, arg := range args {
		if dep, isFut := arg.(*Future); isFut {
			deps = append(deps, dep)
		}
	}
	if err := checkAcyclic(deps); err != nil {
		return nil, err
	}

	f := &Future{
		ID:   utils.GenKSortedID("t_"),
		Op:   op,
		c:    c,
		deps: deps,
		done: make(chan struct{}),
		refs: 1,
	}
	for _, dep := range deps {
		dep.addRef()
	}

	c.submitted.Add(1)
	c.pending.Add(1)
	metricTasksSubmitted.Inc()
	metricQueueDepth.Inc()

	go c.schedule(f, fn, args)

	return f, nil
}

// Map applies Submit element-wise. The returned futures are in the same
// positional order as argsList, whatever order the tasks finish in.
func (c *Cluster) Map(op string, argsList [][]any) ([]*Future, error) {
	futures := make([]*Future, 0, len(argsList))
	for _, args := range argsList {
		f, err := c.Submit(op, args...)
		if err != nil {
			// drop the partial batch so its values don't outlive the caller
			for _, prev := range futures {
				prev.Release()
			}
			return nil, err
		}
		futures = append(futures, f)
	}
	return futures, nil
}

// schedule waits for dependencies off-pool so a full pool can never deadlock
// on tasks waiting for their own dependencies' worker slots.
func (c *Cluster) schedule(f *Future, fn OpFunc, args []any) {
	for _, dep := range deps(f) {
		select {
		case <-dep.done:
		case <-c.shutdownCh:
			c.fail(f, "", fmt.Errorf("cluster shut down before task ran"))
			return
		}
		if err := dep.failure(); err != nil {
			// propagate the dependency's tagged failure
			c.fail(f, "", err)
			return
		}
	}

	if err := c.pool.Submit(func() { c.run(f, fn, args) }); err != nil {
		c.fail(f, "", fmt.Errorf("error submitting to worker pool: %w", err))
	}
}

func (c *Cluster) run(f *Future, fn OpFunc, args []any) {
	workerID := c.workers[atomic.AddUint64(&c.rr, 1)%uint64(len(c.workers))]

	resolved := make([]any, len(args))
	for i, arg := range args {
		if dep, isFut := arg.(*Future); isFut {
			resolved[i] = dep.peek()
		} else {
			resolved[i] = arg
		}
	}

	s := time.Now()
	value, err := func() (value any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return fn(context.Background(), resolved)
	}()
	metricTaskDuration.WithLabelValues(f.Op).Observe(time.Since(s).Seconds())

	if err != nil {
		c.fail(f, workerID, err)
		return
	}

	// a future released while still pending must never land in the store
	f.mu.Lock()
	f.workerID = workerID
	if !f.released {
		c.storeMu.Lock()
		c.store[workerID][f.ID] = value
		c.storeMu.Unlock()
		f.value = value
	}
	f.mu.Unlock()
	close(f.done)

	c.pending.Add(-1)
	c.completed.Add(1)
	metricQueueDepth.Dec()
	metricTasksCompleted.Inc()

	c.releaseDeps(f)
}

func (c *Cluster) fail(f *Future, workerID string, cause error) {
	c.pending.Add(-1)
	c.failed.Add(1)
	metricQueueDepth.Dec()
	metricTasksFailed.Inc()

	if !errors.Is(cause, ErrRemoteTaskFailure) {
		cause = &TaskError{TaskID: f.ID, Op: f.Op, Worker: workerID, Cause: cause}
	}
	f.failWith(workerID, cause)
	c.releaseDeps(f)
}

// releaseDeps drops this task's references on its dependencies, freeing
// worker memory for values nothing else can reach anymore.
func (c *Cluster) releaseDeps(f *Future) {
	for _, dep := range deps(f) {
		dep.deref()
	}
}

// discard is a no-op for a task that never reached a worker; run skips the
// store for futures already released by then.
func (c *Cluster) discard(workerID, taskID string) {
	if workerID == "" {
		return
	}
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	delete(c.store[workerID], taskID)
}

func deps(f *Future) []*Future {
	return f.deps
}

// checkAcyclic walks the dependency graph of the candidate deps. Linear
// chains built through Submit can never cycle, but nothing stops a caller
// from wiring futures together by hand, so guard anyway.
func checkAcyclic(roots []*Future) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*Future]int)
	var visit func(f *Future) error
	visit = func(f *Future) error {
		switch state[f] {
		case visiting:
			return fmt.Errorf("%w: task %s (op %s)", ErrCyclicDependency, f.ID, f.Op)
		case done:
			return nil
		}
		state[f] = visiting
		for _, dep := range f.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[f] = done
		return nil
	}
	for _, root := range roots {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}
