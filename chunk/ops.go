package chunk

import (
	"context"
	"fmt"

	"github.com/rowboatdb/rowboat/catalog"
	"github.com/rowboatdb/rowboat/cluster"
)

// LoadOp wraps a loader as a cluster task variant taking a partition handle
// and a column subset.
func LoadOp(l *Loader) cluster.OpFunc {
	return func(ctx context.Context, args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("load expects (partition, columns), got %d args", len(args))
		}
		part, ok := args[0].(catalog.Partition)
		if !ok {
			return nil, fmt.Errorf("arg 0: expected a partition, got %T", args[0])
		}
		columns, ok := args[1].([]string)
		if !ok {
			return nil, fmt.Errorf("arg 1: expected column names, got %T", args[1])
		}
		return l.Load(ctx, part, columns)
	}
}
