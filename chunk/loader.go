package chunk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rowboatdb/rowboat/catalog"
	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/gologger"
	"github.com/rowboatdb/rowboat/table"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/reader"
)

var (
	logger = gologger.NewComponentLogger("chunk")

	// ErrSchemaMismatch means a requested column does not exist in the
	// dataset schema. Raised before any storage I/O happens.
	ErrSchemaMismatch = errors.New("requested column not in dataset schema")

	ErrEmptyColumns = errors.New("column set must be non-empty")
)

type (
	// Loader converts a partition handle into an in-memory table restricted
	// to a column subset. Pure: no shared state, so repeated loads of the
	// same partition are idempotent and safe to retry.
	Loader struct {
		ds     datastore.DataStore
		schema catalog.Schema
	}
)

const readConcurrency = 4

func NewLoader(ds datastore.DataStore, schema catalog.Schema) *Loader {
	return &Loader{
		ds:     ds,
		schema: schema,
	}
}

// Load reads one partition's rows for the given columns. Every returned
// column has length equal to the partition's declared row count.
func (l *Loader) Load(ctx context.Context, part catalog.Partition, columns []string) (*table.Table, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	if len(columns) == 0 {
		return nil, ErrEmptyColumns
	}
	// Schema check first so a bad column set never touches storage
	for _, col := range columns {
		if !l.schema.HasColumn(col) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaMismatch, col)
		}
	}

	fr, err := l.ds.Open(ctx, part.Locator)
	if err != nil {
		return nil, fmt.Errorf("error opening partition file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, readConcurrency)
	if err != nil {
		return nil, fmt.Errorf("error in reader.NewParquetColumnReader: %w", err)
	}
	defer pr.ReadStop()

	s := time.Now()
	tbl := table.New()
	root := pr.SchemaHandler.GetRootExName()
	for _, colName := range columns {
		path := common.ReformPathStr(root + "." + colName)
		if part.RowOffset > 0 {
			if err := pr.SkipRowsByPath(path, part.RowOffset); err != nil {
				return nil, fmt.Errorf("error in SkipRowsByPath for %s: %w", colName, err)
			}
		}
		values, _, _, err := pr.ReadColumnByPath(path, part.RowCount)
		if err != nil {
			return nil, fmt.Errorf("error in ReadColumnByPath for %s: %w", colName, err)
		}
		col, err := buildColumn(colName, l.schema.Kinds[colName], values)
		if err != nil {
			return nil, err
		}
		if int64(col.Len()) != part.RowCount {
			return nil, fmt.Errorf("column %s read %d rows, partition declares %d", colName, col.Len(), part.RowCount)
		}
		if err := tbl.AddColumn(col); err != nil {
			return nil, err
		}
	}

	logger.Debug().Str("locator", part.Locator).Int("rowGroup", part.Index).Int64("rows", part.RowCount).Strs("columns", columns).Dur("duration", time.Since(s)).Msg("loaded partition")

	return tbl, nil
}

// buildColumn converts the reader's boxed values into a typed column. Nulls
// in optional columns come back as nil and land as zero values.
func buildColumn(name string, kind table.Kind, values []interface{}) (table.Column, error) {
	col := table.Column{Name: name, Kind: kind}
	for _, v := range values {
		switch kind {
		case table.KindInt64:
			switch n := v.(type) {
			case nil:
				col.Int64s = append(col.Int64s, 0)
			case int32:
				col.Int64s = append(col.Int64s, int64(n))
			case int64:
				col.Int64s = append(col.Int64s, n)
			default:
				return col, fmt.Errorf("column %s: unexpected value type %T for kind %s", name, v, kind)
			}
		case table.KindFloat64:
			switch n := v.(type) {
			case nil:
				col.Float64s = append(col.Float64s, 0)
			case float32:
				col.Float64s = append(col.Float64s, float64(n))
			case float64:
				col.Float64s = append(col.Float64s, n)
			default:
				return col, fmt.Errorf("column %s: unexpected value type %T for kind %s", name, v, kind)
			}
		case table.KindString:
			switch n := v.(type) {
			case nil:
				col.Strings = append(col.Strings, "")
			case string:
				col.Strings = append(col.Strings, n)
			default:
				return col, fmt.Errorf("column %s: unexpected value type %T for kind %s", name, v, kind)
			}
		case table.KindBool:
			switch n := v.(type) {
			case nil:
				col.Bools = append(col.Bools, false)
			case bool:
				col.Bools = append(col.Bools, n)
			default:
				return col, fmt.Errorf("column %s: unexpected value type %T for kind %s", name, v, kind)
			}
		case table.KindTimestamp:
			switch n := v.(type) {
			case nil:
				col.Times = append(col.Times, time.Time{})
			case int64:
				col.Times = append(col.Times, time.UnixMilli(n).UTC())
			default:
				return col, fmt.Errorf("column %s: unexpected value type %T for kind %s", name, v, kind)
			}
		default:
			return col, fmt.Errorf("column %s: unsupported kind %s", name, kind)
		}
	}
	return col, nil
}
