package chunk

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rowboatdb/rowboat/catalog"
	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/sampledata"
	"github.com/rowboatdb/rowboat/table"
	"github.com/xitongsys/parquet-go/source"
)

// countingStore wraps a DataStore to observe whether storage was touched.
type countingStore struct {
	datastore.DataStore
	opens int
}

func (cs *countingStore) Open(ctx context.Context, locator string) (source.ParquetFile, error) {
	cs.opens++
	return cs.DataStore.Open(ctx, locator)
}

func scanTestDataset(t *testing.T, groupSizes []int) (*countingStore, *catalog.Dataset) {
	t.Helper()
	dir := t.TempDir()
	if _, err := sampledata.WriteTrips(filepath.Join(dir, "trips.parquet"), groupSizes); err != nil {
		t.Fatal(err)
	}
	dds, err := datastore.NewDiskDataStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	cs := &countingStore{DataStore: dds}
	dataset, err := catalog.NewParquetCatalog(dds, "trips.parquet").Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return cs, dataset
}

func TestLoadColumnLengths(t *testing.T) {
	cs, dataset := scanTestDataset(t, []int{100, 250})
	loader := NewLoader(cs, dataset.Schema)

	for _, part := range dataset.Partitions {
		tbl, err := loader.Load(context.Background(), part, []string{"passenger_count", "fare_amount", "vendor_id", "pickup_at"})
		if err != nil {
			t.Fatal(err)
		}
		if tbl.NumColumns() != 4 {
			t.Fatalf("expected 4 columns, got %d", tbl.NumColumns())
		}
		for _, col := range tbl.Columns() {
			if int64(col.Len()) != part.RowCount {
				t.Fatalf("column %s: expected %d rows, got %d", col.Name, part.RowCount, col.Len())
			}
		}
	}
}

func TestLoadValues(t *testing.T) {
	cs, dataset := scanTestDataset(t, []int{50, 75})
	loader := NewLoader(cs, dataset.Schema)

	// second partition starts at row 50
	tbl, err := loader.Load(context.Background(), dataset.Partitions[1], []string{"passenger_count", "vendor_id"})
	if err != nil {
		t.Fatal(err)
	}
	pc, err := tbl.Column("passenger_count")
	if err != nil {
		t.Fatal(err)
	}
	vendor, err := tbl.Column("vendor_id")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < tbl.NumRows(); i++ {
		want := sampledata.Trip(50 + i)
		if pc.Int64s[i] != want.PassengerCount {
			t.Fatalf("row %d: expected passenger_count %d, got %d", i, want.PassengerCount, pc.Int64s[i])
		}
		if vendor.Strings[i] != want.VendorID {
			t.Fatalf("row %d: expected vendor %s, got %s", i, want.VendorID, vendor.Strings[i])
		}
	}
}

func TestLoadSchemaMismatchBeforeIO(t *testing.T) {
	cs, dataset := scanTestDataset(t, []int{10})
	loader := NewLoader(cs, dataset.Schema)

	_, err := loader.Load(context.Background(), dataset.Partitions[0], []string{"passenger_count", "tip_amount"})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if cs.opens != 0 {
		t.Fatalf("schema mismatch touched storage: %d opens", cs.opens)
	}
}

func TestLoadEmptyColumns(t *testing.T) {
	cs, dataset := scanTestDataset(t, []int{10})
	loader := NewLoader(cs, dataset.Schema)

	_, err := loader.Load(context.Background(), dataset.Partitions[0], nil)
	if !errors.Is(err, ErrEmptyColumns) {
		t.Fatalf("expected ErrEmptyColumns, got %v", err)
	}
}

func TestLoadIdempotent(t *testing.T) {
	cs, dataset := scanTestDataset(t, []int{40})
	loader := NewLoader(cs, dataset.Schema)

	load := func() table.Column {
		tbl, err := loader.Load(context.Background(), dataset.Partitions[0], []string{"fare_amount"})
		if err != nil {
			t.Fatal(err)
		}
		col, err := tbl.Column("fare_amount")
		if err != nil {
			t.Fatal(err)
		}
		return col
	}

	first := load()
	second := load()
	if len(first.Float64s) != len(second.Float64s) {
		t.Fatal("repeated loads disagree on length")
	}
	for i := range first.Float64s {
		if first.Float64s[i] != second.Float64s[i] {
			t.Fatalf("row %d: repeated loads disagree: %f vs %f", i, first.Float64s[i], second.Float64s[i])
		}
	}
}
