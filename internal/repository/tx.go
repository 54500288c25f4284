package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrIndexUnavailable signals a range query that could not use its backing index.
var ErrIndexUnavailable = errors.New("required index unavailable")

// TxRunner executes a unit of work inside a single database transaction.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner builds a transaction runner.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// classifyRangeError maps planner failures (statement timeout on a missing index,
// or an explicit index error) to ErrIndexUnavailable.
func classifyRangeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "57014" || strings.Contains(strings.ToLower(pqErr.Message), "index") {
			return fmt.Errorf("%w: %s", ErrIndexUnavailable, pqErr.Message)
		}
	}
	return err
}
