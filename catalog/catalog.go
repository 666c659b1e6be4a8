package catalog

import (
	"context"
	"errors"

	"github.com/rowboatdb/rowboat/table"
)

type (
	// Partition is an opaque handle to one contiguous, independently-readable
	// row group of a dataset file. Immutable once scanned, it is the unit of
	// work handed to the chunk loader.
	Partition struct {
		// Locator is the dataset file holding this row group
		Locator string
		// Index is the row group's position within the file
		Index int
		// RowOffset is the number of rows in the file before this row group
		RowOffset int64
		RowCount  int64
		ByteSize  int64
	}

	// Schema is the dataset-wide column schema, name to kind, in file order.
	Schema struct {
		Names []string
		Kinds map[string]table.Kind
	}

	// Dataset is the catalog's view of one dataset: its schema plus every
	// partition across all of its files.
	Dataset struct {
		Locator    string
		Schema     Schema
		Partitions []Partition
		TotalRows  int64
	}

	// Catalog scans dataset metadata. Read-only: it derives everything from
	// the files' own footers and holds no state of its own.
	Catalog interface {
		Scan(ctx context.Context) (*Dataset, error)
	}
)

var (
	ErrNoPartitions   = errors.New("no dataset files found")
	ErrSchemaDiverged = errors.New("dataset files disagree on schema")
)

func (s Schema) HasColumn(name string) bool {
	_, exists := s.Kinds[name]
	return exists
}

// Equal compares column names, order, and kinds.
func (s Schema) Equal(other Schema) bool {
	if len(s.Names) != len(other.Names) {
		return false
	}
	for i, name := range s.Names {
		if other.Names[i] != name || other.Kinds[name] != s.Kinds[name] {
			return false
		}
	}
	return true
}
