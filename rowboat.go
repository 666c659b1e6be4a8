package main

import (
	"context"
	"fmt"

	"github.com/rowboatdb/rowboat/cluster"
	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/runstore"
)

type (
	Rowboat struct {
		Cluster *cluster.Cluster
		Store   datastore.DataStore
		Runs    runstore.RunStore
	}
)

func NewRowboat(c *cluster.Cluster, ds datastore.DataStore, rs runstore.RunStore) (*Rowboat, error) {
	rb := &Rowboat{
		Cluster: c,
		Store:   ds,
		Runs:    rs,
	}

	return rb, nil
}

// Shutdown stops the cluster before the stores so no task is left running
// against a closed backend.
func (r *Rowboat) Shutdown(ctx context.Context) error {
	if err := r.Cluster.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down cluster: %w", err)
	}
	if err := r.Runs.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down run store: %w", err)
	}
	if err := r.Store.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down datastore: %w", err)
	}
	return nil
}
