package agg

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rowboatdb/rowboat/table"
)

var (
	ErrNoChunks  = errors.New("no partial results to combine")
	ErrZeroCount = errors.New("combined row count is zero")
)

type (
	// SumCount is the per-chunk partial for a weighted mean: carrying the
	// chunk's row count alongside its sum is what keeps mean-of-means from
	// silently weighting every chunk the same.
	SumCount struct {
		Sum   float64 `json:"sum"`
		Count int64   `json:"count"`
	}
)

// Sum totals a numeric column.
func Sum(tbl *table.Table, column string) (float64, error) {
	col, err := tbl.Column(column)
	if err != nil {
		return 0, err
	}
	vals, err := col.Numeric()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total, nil
}

// SumCountOf computes the weighted-mean partial for one chunk.
func SumCountOf(tbl *table.Table, column string) (SumCount, error) {
	sum, err := Sum(tbl, column)
	if err != nil {
		return SumCount{}, err
	}
	return SumCount{Sum: sum, Count: int64(tbl.NumRows())}, nil
}

// ValueCounts counts occurrences of each distinct value in a column. Keys
// are the values' string forms so every kind shares one map shape.
func ValueCounts(tbl *table.Table, column string) (map[string]int64, error) {
	col, err := tbl.Column(column)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	switch col.Kind {
	case table.KindInt64:
		for _, v := range col.Int64s {
			counts[strconv.FormatInt(v, 10)]++
		}
	case table.KindFloat64:
		for _, v := range col.Float64s {
			counts[strconv.FormatFloat(v, 'g', -1, 64)]++
		}
	case table.KindString:
		for _, v := range col.Strings {
			counts[v]++
		}
	case table.KindBool:
		for _, v := range col.Bools {
			counts[strconv.FormatBool(v)]++
		}
	default:
		return nil, fmt.Errorf("column %s: value counts unsupported for kind %s", column, col.Kind)
	}
	return counts, nil
}

// CombineSums adds per-chunk sums. Commutative and associative, so the
// result is independent of which worker produced which partial and of
// submission order.
func CombineSums(partials []float64) (float64, error) {
	if len(partials) == 0 {
		return 0, ErrNoChunks
	}
	var total float64
	for _, p := range partials {
		total += p
	}
	return total, nil
}

func CombineCounts(partials []int64) (int64, error) {
	if len(partials) == 0 {
		return 0, ErrNoChunks
	}
	var total int64
	for _, p := range partials {
		total += p
	}
	return total, nil
}

// WeightedMean divides the combined sum by the combined count, the
// chunk-size-aware combination a naive mean-of-means gets wrong.
func WeightedMean(partials []SumCount) (float64, error) {
	if len(partials) == 0 {
		return 0, ErrNoChunks
	}
	var (
		sum   float64
		count int64
	)
	for _, p := range partials {
		sum += p.Sum
		count += p.Count
	}
	if count == 0 {
		return 0, ErrZeroCount
	}
	return sum / float64(count), nil
}

// MergeValueCounts merges per-chunk counts: union of keys, counts summed per
// key.
func MergeValueCounts(partials []map[string]int64) (map[string]int64, error) {
	if len(partials) == 0 {
		return nil, ErrNoChunks
	}
	merged := make(map[string]int64)
	for _, p := range partials {
		for k, v := range p {
			merged[k] += v
		}
	}
	return merged, nil
}
