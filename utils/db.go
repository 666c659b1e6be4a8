package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ReliableExec acquires a pooled connection and runs f under a timeout,
// retrying transient failures. Errors flagged permanent stop the retry loop
// immediately.
func ReliableExec(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, f func(ctx context.Context, conn *pgxpool.Conn) error) error {
	return backoff.Retry(func() error {
		execCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := pool.Acquire(execCtx)
		if err != nil {
			return fmt.Errorf("error acquiring pool connection: %w", err)
		}
		defer conn.Release()

		err = f(execCtx, conn)
		if errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
}

// ReliableExecInTx is ReliableExec but f runs inside a transaction that is
// committed on nil and rolled back on error.
func ReliableExecInTx(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, f func(ctx context.Context, tx pgx.Tx) error) error {
	return ReliableExec(ctx, pool, timeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("error in conn.Begin: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := f(ctx, tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("error in tx.Commit: %w", err)
		}
		return nil
	})
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
