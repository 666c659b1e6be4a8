package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/gologger"
	"github.com/rowboatdb/rowboat/table"
	"github.com/rs/zerolog"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"golang.org/x/sync/errgroup"
)

var logger = gologger.NewComponentLogger("catalog")

type (
	// ParquetCatalog scans parquet footers through a DataStore. A locator
	// ending in .parquet names a single file, anything else is treated as a
	// prefix of files.
	ParquetCatalog struct {
		ds      datastore.DataStore
		locator string
	}

	fileMeta struct {
		locator    string
		schema     Schema
		partitions []Partition
	}
)

const scanConcurrency = 4

func NewParquetCatalog(ds datastore.DataStore, locator string) *ParquetCatalog {
	return &ParquetCatalog{
		ds:      ds,
		locator: locator,
	}
}

func (pc *ParquetCatalog) Scan(ctx context.Context) (*Dataset, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	locators := []string{pc.locator}
	if !strings.HasSuffix(pc.locator, ".parquet") {
		var err error
		locators, err = pc.ds.List(ctx, pc.locator)
		if err != nil {
			return nil, fmt.Errorf("error listing dataset files: %w", err)
		}
	}
	if len(locators) == 0 {
		return nil, fmt.Errorf("%w: locator %s", ErrNoPartitions, pc.locator)
	}

	var (
		mu    sync.Mutex
		files []fileMeta
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, locator := range locators {
		locator := locator
		g.Go(func() error {
			fm, err := pc.scanFile(gctx, locator)
			if err != nil {
				return fmt.Errorf("error scanning footer of %s: %w", locator, err)
			}
			mu.Lock()
			files = append(files, fm)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic partition order regardless of scan completion order
	sort.Slice(files, func(i, j int) bool { return files[i].locator < files[j].locator })

	ds := &Dataset{
		Locator: pc.locator,
		Schema:  files[0].schema,
	}
	for _, fm := range files {
		if !fm.schema.Equal(ds.Schema) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaDiverged, fm.locator)
		}
		for _, p := range fm.partitions {
			ds.Partitions = append(ds.Partitions, p)
			ds.TotalRows += p.RowCount
		}
	}

	logger.Debug().Str("locator", pc.locator).Int("files", len(files)).Int("partitions", len(ds.Partitions)).Int64("totalRows", ds.TotalRows).Msg("scanned dataset")

	return ds, nil
}

func (pc *ParquetCatalog) scanFile(ctx context.Context, locator string) (fileMeta, error) {
	fm := fileMeta{locator: locator}

	fr, err := pc.ds.Open(ctx, locator)
	if err != nil {
		return fm, fmt.Errorf("error opening file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, scanConcurrency)
	if err != nil {
		return fm, fmt.Errorf("error in reader.NewParquetColumnReader: %w", err)
	}
	defer pr.ReadStop()

	fm.schema, err = schemaFromFooter(pr.Footer.Schema)
	if err != nil {
		return fm, err
	}

	var rowOffset int64
	for i, rg := range pr.Footer.RowGroups {
		fm.partitions = append(fm.partitions, Partition{
			Locator:   locator,
			Index:     i,
			RowOffset: rowOffset,
			RowCount:  rg.NumRows,
			ByteSize:  rg.TotalByteSize,
		})
		rowOffset += rg.NumRows
	}
	return fm, nil
}

// schemaFromFooter flattens the footer's schema elements. Only flat schemas
// are supported: one root element followed by leaf columns.
func schemaFromFooter(elements []*parquet.SchemaElement) (Schema, error) {
	schema := Schema{
		Kinds: make(map[string]table.Kind),
	}
	for i, el := range elements {
		if i == 0 {
			// root
			continue
		}
		if el.NumChildren != nil && *el.NumChildren > 0 {
			return schema, fmt.Errorf("nested column %s is not supported", el.Name)
		}
		kind, err := kindFromElement(el)
		if err != nil {
			return schema, err
		}
		schema.Names = append(schema.Names, el.Name)
		schema.Kinds[el.Name] = kind
	}
	return schema, nil
}

func kindFromElement(el *parquet.SchemaElement) (table.Kind, error) {
	if el.Type == nil {
		return "", fmt.Errorf("column %s has no physical type", el.Name)
	}
	switch *el.Type {
	case parquet.Type_BOOLEAN:
		return table.KindBool, nil
	case parquet.Type_INT32:
		return table.KindInt64, nil
	case parquet.Type_INT64:
		if el.ConvertedType != nil && *el.ConvertedType == parquet.ConvertedType_TIMESTAMP_MILLIS {
			return table.KindTimestamp, nil
		}
		return table.KindInt64, nil
	case parquet.Type_FLOAT, parquet.Type_DOUBLE:
		return table.KindFloat64, nil
	case parquet.Type_BYTE_ARRAY, parquet.Type_FIXED_LEN_BYTE_ARRAY:
		return table.KindString, nil
	default:
		return "", fmt.Errorf("column %s has unsupported physical type %s", el.Name, el.Type)
	}
}
