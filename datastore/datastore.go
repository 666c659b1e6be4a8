package datastore

import (
	"context"
	"errors"

	"github.com/xitongsys/parquet-go/source"
)

// ErrSourceUnavailable means the backing storage could not be reached or the
// object could not be read. Transient: partitions are immutable so callers
// can safely retry by resubmitting the read.
var ErrSourceUnavailable = errors.New("source unavailable")

type (
	// DataStore opens a dataset file for reading by locator. Implementations
	// are read-only and stateless, so concurrent opens of disjoint partitions
	// need no coordination.
	DataStore interface {
		// Open returns a positioned parquet file handle for the locator
		Open(ctx context.Context, locator string) (source.ParquetFile, error)

		// List returns the locators of dataset files under a prefix, in
		// lexical order
		List(ctx context.Context, prefix string) ([]string, error)

		Shutdown(ctx context.Context) error
	}
)
