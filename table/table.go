package table

import (
	"errors"
	"fmt"
	"time"
)

type (
	// Kind is the fixed value type of a column.
	Kind string

	// Column is an ordered, named array of values of a single Kind. Exactly
	// one of the value slices is populated, matching Kind.
	Column struct {
		Name string
		Kind Kind

		Int64s   []int64
		Float64s []float64
		Strings  []string
		Bools    []bool
		Times    []time.Time
	}

	// Table is a column-oriented collection of named, typed arrays that all
	// share a row count. Row order matches the backing dataset's order.
	Table struct {
		cols   []Column
		byName map[string]int
	}
)

const (
	KindInt64     Kind = "int64"
	KindFloat64   Kind = "float64"
	KindString    Kind = "string"
	KindBool      Kind = "bool"
	KindTimestamp Kind = "timestamp"
)

var (
	ErrRaggedColumns  = errors.New("columns have differing lengths")
	ErrColumnNotFound = errors.New("column not found")
	ErrColumnExists   = errors.New("column already exists")
)

func (c Column) Len() int {
	switch c.Kind {
	case KindInt64:
		return len(c.Int64s)
	case KindFloat64:
		return len(c.Float64s)
	case KindString:
		return len(c.Strings)
	case KindBool:
		return len(c.Bools)
	case KindTimestamp:
		return len(c.Times)
	default:
		return 0
	}
}

// Numeric returns the column's values widened to float64. Fails for
// non-numeric kinds.
func (c Column) Numeric() ([]float64, error) {
	switch c.Kind {
	case KindFloat64:
		return c.Float64s, nil
	case KindInt64:
		vals := make([]float64, len(c.Int64s))
		for i, v := range c.Int64s {
			vals[i] = float64(v)
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("column %s has non-numeric kind %s", c.Name, c.Kind)
	}
}

func New() *Table {
	return &Table{
		byName: make(map[string]int),
	}
}

// AddColumn appends a column, enforcing that every column in the table has
// the same length.
func (t *Table) AddColumn(col Column) error {
	if _, exists := t.byName[col.Name]; exists {
		return fmt.Errorf("%w: %s", ErrColumnExists, col.Name)
	}
	if len(t.cols) > 0 && col.Len() != t.NumRows() {
		return fmt.Errorf("%w: column %s has %d rows, table has %d", ErrRaggedColumns, col.Name, col.Len(), t.NumRows())
	}
	t.byName[col.Name] = len(t.cols)
	t.cols = append(t.cols, col)
	return nil
}

func (t *Table) Column(name string) (Column, error) {
	idx, exists := t.byName[name]
	if !exists {
		return Column{}, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return t.cols[idx], nil
}

// Columns returns the columns in insertion order.
func (t *Table) Columns() []Column {
	return t.cols
}

func (t *Table) ColumnNames() []string {
	var names []string
	for _, col := range t.cols {
		names = append(names, col.Name)
	}
	return names
}

func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

func (t *Table) NumColumns() int {
	return len(t.cols)
}

// Concat appends the rows of each other table. All tables must carry the
// same columns (name and kind) in any order. The result's row count is the
// sum of the inputs', no rows lost or duplicated.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New(), nil
	}
	out := New()
	for _, first := range tables[0].cols {
		merged := Column{Name: first.Name, Kind: first.Kind}
		for _, t := range tables {
			col, err := t.Column(first.Name)
			if err != nil {
				return nil, err
			}
			if col.Kind != first.Kind {
				return nil, fmt.Errorf("column %s kind mismatch: %s vs %s", first.Name, first.Kind, col.Kind)
			}
			merged.Int64s = append(merged.Int64s, col.Int64s...)
			merged.Float64s = append(merged.Float64s, col.Float64s...)
			merged.Strings = append(merged.Strings, col.Strings...)
			merged.Bools = append(merged.Bools, col.Bools...)
			merged.Times = append(merged.Times, col.Times...)
		}
		if err := out.AddColumn(merged); err != nil {
			return nil, err
		}
	}
	return out, nil
}
