package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rowboatdb/rowboat/utils"
)

type (
	CRDBRunStore struct {
		pool *pgxpool.Pool
	}
)

func NewCRDBRunStore(pool *pgxpool.Pool) (*CRDBRunStore, error) {
	return &CRDBRunStore{
		pool: pool,
	}, nil
}

func (rs *CRDBRunStore) RecordRun(ctx context.Context, run Run) error {
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("error in json.Marshal: %w", err)
	}

	err = crdbpgx.ExecuteTx(ctx, rs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO runs (id, dataset, op, col, result, partitions, total_rows, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, run.ID, run.Dataset, run.Op, run.Column, resultJSON, run.Partitions, run.TotalRows, run.DurationMS)
		return err
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			// run IDs are ksuids, a duplicate means the caller re-sent the
			// same record
			return nil
		}
		return fmt.Errorf("error inserting run: %w", err)
	}
	return nil
}

func (rs *CRDBRunStore) ListRuns(ctx context.Context, dataset string, limit int64) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	var runs []Run
	err := utils.ReliableExec(ctx, rs.pool, time.Second*15, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, dataset, op, col, result, partitions, total_rows, duration_ms, created_at
			FROM runs
			WHERE dataset = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, dataset, limit)
		if err != nil {
			return fmt.Errorf("error in conn.Query: %w", err)
		}
		defer rows.Close()

		runs = runs[:0]
		for rows.Next() {
			var (
				run        Run
				resultJSON []byte
				createdAt  pgtype.Timestamptz
			)
			if err := rows.Scan(&run.ID, &run.Dataset, &run.Op, &run.Column, &resultJSON, &run.Partitions, &run.TotalRows, &run.DurationMS, &createdAt); err != nil {
				return fmt.Errorf("error in rows.Scan: %w", err)
			}
			if err := json.Unmarshal(resultJSON, &run.Result); err != nil {
				return fmt.Errorf("error in json.Unmarshal: %w", err)
			}
			run.CreatedAt = createdAt.Time
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return utils.ArrayOrEmpty(runs), nil
}

func (rs *CRDBRunStore) Shutdown(_ context.Context) error {
	rs.pool.Close()
	return nil
}
