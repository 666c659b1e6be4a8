package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/sampledata"
	"github.com/rowboatdb/rowboat/table"
)

func TestScanSingleFile(t *testing.T) {
	dir := t.TempDir()
	groupSizes := []int{1000, 1500, 2000}
	total, err := sampledata.WriteTrips(filepath.Join(dir, "trips.parquet"), groupSizes)
	if err != nil {
		t.Fatal(err)
	}

	ds, err := datastore.NewDiskDataStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := NewParquetCatalog(ds, "trips.parquet").Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(dataset.Partitions) != len(groupSizes) {
		t.Fatalf("expected %d partitions, got %d", len(groupSizes), len(dataset.Partitions))
	}
	var sum int64
	var offset int64
	for i, p := range dataset.Partitions {
		if p.RowCount != int64(groupSizes[i]) {
			t.Fatalf("partition %d: expected %d rows, got %d", i, groupSizes[i], p.RowCount)
		}
		if p.RowOffset != offset {
			t.Fatalf("partition %d: expected offset %d, got %d", i, offset, p.RowOffset)
		}
		if p.Index != i {
			t.Fatalf("partition %d: bad row group index %d", i, p.Index)
		}
		offset += p.RowCount
		sum += p.RowCount
	}
	// partitions are disjoint and cover the dataset: no row lost or duplicated
	if sum != total || dataset.TotalRows != total {
		t.Fatalf("partition row counts sum to %d, dataset declares %d, file has %d", sum, dataset.TotalRows, total)
	}
}

func TestScanSchemaKinds(t *testing.T) {
	dir := t.TempDir()
	if _, err := sampledata.WriteTrips(filepath.Join(dir, "trips.parquet"), []int{10}); err != nil {
		t.Fatal(err)
	}

	ds, err := datastore.NewDiskDataStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := NewParquetCatalog(ds, "trips.parquet").Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]table.Kind{
		"vendor_id":       table.KindString,
		"passenger_count": table.KindInt64,
		"fare_amount":     table.KindFloat64,
		"pickup_at":       table.KindTimestamp,
	}
	if len(dataset.Schema.Names) != len(expected) {
		t.Fatalf("expected %d columns, got %v", len(expected), dataset.Schema.Names)
	}
	for name, kind := range expected {
		if !dataset.Schema.HasColumn(name) {
			t.Fatalf("missing column %s", name)
		}
		if dataset.Schema.Kinds[name] != kind {
			t.Fatalf("column %s: expected kind %s, got %s", name, kind, dataset.Schema.Kinds[name])
		}
	}
}

func TestScanMultiFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := sampledata.WriteTrips(filepath.Join(dir, "part1.parquet"), []int{100, 200}); err != nil {
		t.Fatal(err)
	}
	if _, err := sampledata.WriteTrips(filepath.Join(dir, "part2.parquet"), []int{300}); err != nil {
		t.Fatal(err)
	}

	ds, err := datastore.NewDiskDataStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := NewParquetCatalog(ds, "").Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(dataset.Partitions) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(dataset.Partitions))
	}
	if dataset.TotalRows != 600 {
		t.Fatalf("expected 600 total rows, got %d", dataset.TotalRows)
	}
	// lexical file order regardless of concurrent scan completion order
	if dataset.Partitions[0].Locator != "part1.parquet" || dataset.Partitions[2].Locator != "part2.parquet" {
		t.Fatalf("partitions out of order: %+v", dataset.Partitions)
	}
}

func TestScanMissing(t *testing.T) {
	ds, err := datastore.NewDiskDataStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewParquetCatalog(ds, "nope.parquet").Scan(context.Background())
	if !errors.Is(err, datastore.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
