package agg

import (
	"context"
	"fmt"

	"github.com/rowboatdb/rowboat/cluster"
	"github.com/rowboatdb/rowboat/table"
)

// Cluster op names for the aggregation task variants.
const (
	OpSumColumn      = "sum_column"
	OpSumCountColumn = "sum_count_column"
	OpCountRows      = "count_rows"
	OpValueCounts    = "value_counts"
	OpCombineSums    = "combine_sums"
	OpCombineCounts  = "combine_counts"
	OpWeightedMean   = "weighted_mean"
	OpMergeCounts    = "merge_value_counts"
)

// RegisterOps installs every reducer and combiner into the cluster's op set.
func RegisterOps(c *cluster.Cluster) error {
	ops := map[string]cluster.OpFunc{
		OpSumColumn: func(_ context.Context, args []any) (any, error) {
			tbl, col, err := tableColumnArgs(args)
			if err != nil {
				return nil, err
			}
			return Sum(tbl, col)
		},
		OpSumCountColumn: func(_ context.Context, args []any) (any, error) {
			tbl, col, err := tableColumnArgs(args)
			if err != nil {
				return nil, err
			}
			return SumCountOf(tbl, col)
		},
		OpCountRows: func(_ context.Context, args []any) (any, error) {
			tbl, err := tableArg(args, 0)
			if err != nil {
				return nil, err
			}
			return int64(tbl.NumRows()), nil
		},
		OpValueCounts: func(_ context.Context, args []any) (any, error) {
			tbl, col, err := tableColumnArgs(args)
			if err != nil {
				return nil, err
			}
			return ValueCounts(tbl, col)
		},
		OpCombineSums: func(_ context.Context, args []any) (any, error) {
			partials, err := typedArgs[float64](args)
			if err != nil {
				return nil, err
			}
			return CombineSums(partials)
		},
		OpCombineCounts: func(_ context.Context, args []any) (any, error) {
			partials, err := typedArgs[int64](args)
			if err != nil {
				return nil, err
			}
			return CombineCounts(partials)
		},
		OpWeightedMean: func(_ context.Context, args []any) (any, error) {
			partials, err := typedArgs[SumCount](args)
			if err != nil {
				return nil, err
			}
			return WeightedMean(partials)
		},
		OpMergeCounts: func(_ context.Context, args []any) (any, error) {
			partials, err := typedArgs[map[string]int64](args)
			if err != nil {
				return nil, err
			}
			return MergeValueCounts(partials)
		},
	}
	for name, fn := range ops {
		if err := c.RegisterOp(name, fn); err != nil {
			return fmt.Errorf("error registering op %s: %w", name, err)
		}
	}
	return nil
}

func tableArg(args []any, idx int) (*table.Table, error) {
	if idx >= len(args) {
		return nil, fmt.Errorf("missing arg %d: expected a table", idx)
	}
	tbl, ok := args[idx].(*table.Table)
	if !ok {
		return nil, fmt.Errorf("arg %d: expected a table, got %T", idx, args[idx])
	}
	return tbl, nil
}

func tableColumnArgs(args []any) (*table.Table, string, error) {
	tbl, err := tableArg(args, 0)
	if err != nil {
		return nil, "", err
	}
	if len(args) < 2 {
		return nil, "", fmt.Errorf("missing arg 1: expected a column name")
	}
	col, ok := args[1].(string)
	if !ok {
		return nil, "", fmt.Errorf("arg 1: expected a column name, got %T", args[1])
	}
	return tbl, col, nil
}

func typedArgs[T any](args []any) ([]T, error) {
	out := make([]T, 0, len(args))
	for i, arg := range args {
		v, ok := arg.(T)
		if !ok {
			return nil, fmt.Errorf("arg %d: expected %T, got %T", i, *new(T), arg)
		}
		out = append(out, v)
	}
	return out, nil
}
