package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
)

type (
	DiskDataStore struct {
		rootPath string
	}
)

func NewDiskDataStore(rootPath string) (*DiskDataStore, error) {
	dds := &DiskDataStore{
		rootPath: rootPath,
	}

	return dds, nil
}

func (dds *DiskDataStore) Open(_ context.Context, locator string) (source.ParquetFile, error) {
	fr, err := local.NewLocalFileReader(filepath.Join(dds.rootPath, locator))
	if err != nil {
		return nil, fmt.Errorf("%w: error in local.NewLocalFileReader: %s", ErrSourceUnavailable, err)
	}
	return fr, nil
}

func (dds *DiskDataStore) List(_ context.Context, prefix string) ([]string, error) {
	var locators []string
	root := filepath.Join(dds.rootPath, prefix)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".parquet") {
			return nil
		}
		rel, err := filepath.Rel(dds.rootPath, path)
		if err != nil {
			return err
		}
		locators = append(locators, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: error walking %s: %s", ErrSourceUnavailable, root, err)
	}
	sort.Strings(locators)
	return locators, nil
}

func (dds *DiskDataStore) Shutdown(_ context.Context) error {
	return nil
}
