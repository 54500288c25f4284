package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

// MaxBatchSize caps the number of writes committed in one transaction.
const MaxBatchSize = 450

type txRunner interface {
	RunInTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type generatedShiftWriter interface {
	InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, shift *models.TeachingShift) (bool, error)
	PatchGenerated(ctx context.Context, exec sqlx.ExtContext, shift *models.TeachingShift) (bool, error)
}

// WriteKind selects the persistence path for a generated shift.
type WriteKind int

const (
	// WriteInsert creates a shift whose id does not exist yet.
	WriteInsert WriteKind = iota
	// WritePatch refreshes an existing editable generated shift.
	WritePatch
)

type pendingWrite struct {
	kind  WriteKind
	shift *models.TeachingShift
}

// BatchResult summarises committed writes. NoOps counts writes the store declined
// (id inserted concurrently, or shift no longer editable).
type BatchResult struct {
	Committed int
	NoOps     int
	Batches   int
}

// BatchWriter accumulates generated shift writes and commits them in bounded transactions.
type BatchWriter struct {
	tx      txRunner
	writer  generatedShiftWriter
	limit   int
	pending []pendingWrite
	result  BatchResult
}

// NewBatchWriter builds a writer; limit is clamped to (0, MaxBatchSize].
func NewBatchWriter(tx txRunner, writer generatedShiftWriter, limit int) *BatchWriter {
	if limit <= 0 || limit > MaxBatchSize {
		limit = MaxBatchSize
	}
	return &BatchWriter{tx: tx, writer: writer, limit: limit}
}

// Add queues a write.
func (b *BatchWriter) Add(kind WriteKind, shift *models.TeachingShift) {
	b.pending = append(b.pending, pendingWrite{kind: kind, shift: shift})
}

// PendingOverlap reports whether another queued, uncommitted shift of the same teacher overlaps shift.
func (b *BatchWriter) PendingOverlap(shift *models.TeachingShift) bool {
	for _, w := range b.pending {
		if w.shift.ID == shift.ID || w.shift.TeacherID != shift.TeacherID {
			continue
		}
		if w.shift.Overlaps(shift.ShiftStart, shift.ShiftEnd) {
			return true
		}
	}
	return false
}

// FlushIfFull commits when the pending batch reached the limit.
func (b *BatchWriter) FlushIfFull(ctx context.Context) error {
	if len(b.pending) < b.limit {
		return nil
	}
	return b.flush(ctx)
}

// FlushRemaining commits whatever is pending.
func (b *BatchWriter) FlushRemaining(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	return b.flush(ctx)
}

// Result returns the totals of committed batches.
func (b *BatchWriter) Result() BatchResult {
	return b.result
}

func (b *BatchWriter) flush(ctx context.Context) error {
	batch := b.pending
	var committed, noops int
	err := b.tx.RunInTx(ctx, func(exec sqlx.ExtContext) error {
		committed, noops = 0, 0
		for _, w := range batch {
			var (
				written bool
				err     error
			)
			switch w.kind {
			case WritePatch:
				written, err = b.writer.PatchGenerated(ctx, exec, w.shift)
			default:
				written, err = b.writer.InsertIfAbsent(ctx, exec, w.shift)
			}
			if err != nil {
				return err
			}
			if written {
				committed++
			} else {
				noops++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit shift batch: %w", err)
	}
	b.pending = b.pending[:0]
	b.result.Committed += committed
	b.result.NoOps += noops
	b.result.Batches++
	return nil
}
