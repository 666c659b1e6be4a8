package datastore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskListOrderedParquetOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.parquet", "a.parquet", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	dds, err := NewDiskDataStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	locators, err := dds.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}

	if len(locators) != 2 || locators[0] != "a.parquet" || locators[1] != "b.parquet" {
		t.Fatalf("unexpected locators: %v", locators)
	}
}

func TestDiskOpenMissing(t *testing.T) {
	dds, err := NewDiskDataStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = dds.Open(context.Background(), "missing.parquet")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
