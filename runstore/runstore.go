package runstore

import (
	"context"
	"time"

	"github.com/rowboatdb/rowboat/gologger"
)

var logger = gologger.NewComponentLogger("runstore")

type (
	// Run is one completed aggregate computation, kept for history and for
	// comparing manual and facade results over time.
	Run struct {
		ID         string    `json:"id"`
		Dataset    string    `json:"dataset"`
		Op         string    `json:"op"`
		Column     string    `json:"column"`
		Result     any       `json:"result"`
		Partitions int64     `json:"partitions"`
		TotalRows  int64     `json:"totalRows"`
		DurationMS int64     `json:"durationMS"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	// RunStore records completed aggregate runs.
	RunStore interface {
		RecordRun(ctx context.Context, run Run) error
		ListRuns(ctx context.Context, dataset string, limit int64) ([]Run, error)

		Shutdown(ctx context.Context) error
	}
)

// NoopRunStore is used when no CRDB_DSN is configured: runs are logged and
// dropped.
type NoopRunStore struct{}

func (NoopRunStore) RecordRun(ctx context.Context, run Run) error {
	logger.Debug().Str("runID", run.ID).Str("dataset", run.Dataset).Str("op", run.Op).Msg("run store disabled, dropping run record")
	return nil
}

func (NoopRunStore) ListRuns(_ context.Context, _ string, _ int64) ([]Run, error) {
	return nil, nil
}

func (NoopRunStore) Shutdown(_ context.Context) error {
	return nil
}
