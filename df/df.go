// Package df is the high-level face of the library: point it at a dataset
// and a column subset and ask for aggregates, and it drives the catalog
// scan, per-partition load tasks, reducers, and combiner itself. It is the
// automated version of wiring chunk futures through the cluster by hand,
// and both paths must agree numerically on the same dataset.
package df

import (
	"context"
	"errors"
	"fmt"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/rowboatdb/rowboat/agg"
	"github.com/rowboatdb/rowboat/catalog"
	"github.com/rowboatdb/rowboat/chunk"
	"github.com/rowboatdb/rowboat/cluster"
	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/gologger"
	"github.com/rowboatdb/rowboat/utils"
	"github.com/rs/zerolog"
)

var (
	logger   = gologger.NewComponentLogger("df")
	validate = validator.New()
)

type (
	Options struct {
		// Locator is a dataset file or prefix understood by the datastore
		Locator string `validate:"required"`
		// Columns is the non-empty column subset every load is restricted to
		Columns []string `validate:"required,min=1,dive,required"`
		// MaxRetries bounds resubmission of the pipeline when a load fails
		// with a transient storage error
		MaxRetries uint64
	}

	// Frame is a parallel view over one dataset's partitions, bound to a
	// connected cluster.
	Frame struct {
		opts    Options
		c       *cluster.Cluster
		dataset *catalog.Dataset
		loadOp  string
	}
)

const defaultMaxRetries = 3

// Open scans the dataset and binds a frame to the cluster. The column
// subset is validated against the dataset schema here, so a typo'd column
// fails before any partition is ever read.
func Open(ctx context.Context, c *cluster.Cluster, ds datastore.DataStore, opts Options) (*Frame, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}

	dataset, err := catalog.NewParquetCatalog(ds, opts.Locator).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error scanning dataset: %w", err)
	}
	for _, col := range opts.Columns {
		if !dataset.Schema.HasColumn(col) {
			return nil, fmt.Errorf("%w: %s", chunk.ErrSchemaMismatch, col)
		}
	}

	f := &Frame{
		opts:    opts,
		c:       c,
		dataset: dataset,
		loadOp:  "load_chunk_" + utils.GenRandomShortID(),
	}
	loader := chunk.NewLoader(ds, dataset.Schema)
	if err := c.RegisterOp(f.loadOp, chunk.LoadOp(loader)); err != nil {
		return nil, fmt.Errorf("error registering load op: %w", err)
	}
	return f, nil
}

// Close removes the frame's load op from the cluster. In-flight futures
// already submitted keep running.
func (f *Frame) Close() {
	f.c.DeregisterOp(f.loadOp)
}

func (f *Frame) Dataset() *catalog.Dataset {
	return f.dataset
}

func (f *Frame) NumPartitions() int {
	return len(f.dataset.Partitions)
}

// Sum totals a numeric column across every partition.
func (f *Frame) Sum(ctx context.Context, column string) (float64, error) {
	v, err := f.aggregate(ctx, agg.OpSumColumn, agg.OpCombineSums, column)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Mean is the chunk-size-weighted mean of a numeric column: per-chunk
// (sum, count) pairs combined as total sum over total count.
func (f *Frame) Mean(ctx context.Context, column string) (float64, error) {
	v, err := f.aggregate(ctx, agg.OpSumCountColumn, agg.OpWeightedMean, column)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Count returns the number of rows in the dataset.
func (f *Frame) Count(ctx context.Context) (int64, error) {
	v, err := f.aggregate(ctx, agg.OpCountRows, agg.OpCombineCounts, "")
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ValueCounts counts rows by distinct value of a column, merged across
// partitions by key.
func (f *Frame) ValueCounts(ctx context.Context, column string) (map[string]int64, error) {
	v, err := f.aggregate(ctx, agg.OpValueCounts, agg.OpMergeCounts, column)
	if err != nil {
		return nil, err
	}
	return v.(map[string]int64), nil
}

// aggregate runs one load -> reduce -> combine round over every partition.
// Transient storage failures retry the whole round by resubmission, which
// the loader's idempotence makes safe; schema errors are permanent.
func (f *Frame) aggregate(ctx context.Context, reduceOp, combineOp, column string) (any, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	if column != "" && !utils.ContainsString(f.opts.Columns, column) {
		return nil, fmt.Errorf("%w: column %s not in frame's column subset", chunk.ErrSchemaMismatch, column)
	}

	var value any
	err := backoff.Retry(func() error {
		v, err := f.runRound(ctx, reduceOp, combineOp, column)
		if err != nil {
			if errors.Is(err, datastore.ErrSourceUnavailable) {
				logger.Warn().Err(err).Str("reduceOp", reduceOp).Msg("transient load failure, resubmitting round")
				return err
			}
			return backoff.Permanent(err)
		}
		value = v
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.opts.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (f *Frame) runRound(ctx context.Context, reduceOp, combineOp, column string) (any, error) {
	loadArgs := make([][]any, 0, len(f.dataset.Partitions))
	for _, part := range f.dataset.Partitions {
		loadArgs = append(loadArgs, []any{part, f.opts.Columns})
	}
	loadFuts, err := f.c.Map(f.loadOp, loadArgs)
	if err != nil {
		return nil, fmt.Errorf("error submitting loads: %w", err)
	}
	defer releaseAll(loadFuts)

	reduceFuts := make([]*cluster.Future, 0, len(loadFuts))
	combineArgs := make([]any, 0, len(loadFuts))
	for _, loadFut := range loadFuts {
		args := []any{loadFut}
		if column != "" {
			args = append(args, column)
		}
		reduceFut, err := f.c.Submit(reduceOp, args...)
		if err != nil {
			releaseAll(reduceFuts)
			return nil, fmt.Errorf("error submitting reducer: %w", err)
		}
		reduceFuts = append(reduceFuts, reduceFut)
		combineArgs = append(combineArgs, reduceFut)
	}
	defer releaseAll(reduceFuts)

	combined, err := f.c.Submit(combineOp, combineArgs...)
	if err != nil {
		return nil, fmt.Errorf("error submitting combiner: %w", err)
	}
	defer combined.Release()

	value, err := f.c.Result(ctx, combined)
	if err != nil {
		return nil, fmt.Errorf("error in Result: %w", err)
	}
	return value, nil
}

func releaseAll(futs []*cluster.Future) {
	for _, f := range futs {
		f.Release()
	}
}
