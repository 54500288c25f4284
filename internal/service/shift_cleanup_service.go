package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

type cleanupShiftStore interface {
	ListCleanupCandidates(ctx context.Context, templateID *string) ([]string, error)
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (int64, error)
}

// ShiftCleanupService removes generated shifts that have not started yet (or were missed)
// so a template can be regenerated from scratch.
type ShiftCleanupService struct {
	shifts    cleanupShiftStore
	tx        txRunner
	metrics   *MetricsService
	logger    *zap.Logger
	batchSize int
}

// NewShiftCleanupService builds the sweep; batchSize is clamped to MaxBatchSize.
func NewShiftCleanupService(shifts cleanupShiftStore, tx txRunner, metrics *MetricsService, logger *zap.Logger, batchSize int) *ShiftCleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &ShiftCleanupService{shifts: shifts, tx: tx, metrics: metrics, logger: logger, batchSize: batchSize}
}

// Cleanup deletes scheduled or missed generated shifts, optionally scoped to one template.
// Each batch commits independently; on error the count of already deleted shifts is returned.
func (s *ShiftCleanupService) Cleanup(ctx context.Context, templateID *string) (models.CleanupResult, error) {
	var result models.CleanupResult

	ids, err := s.shifts.ListCleanupCandidates(ctx, templateID)
	if err != nil {
		return result, err
	}

	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		var deleted int64
		err := s.tx.RunInTx(ctx, func(exec sqlx.ExtContext) error {
			n, err := s.shifts.DeleteByIDs(ctx, exec, chunk)
			deleted = n
			return err
		})
		if err != nil {
			s.metrics.RecordCleanup(result.Deleted)
			return result, fmt.Errorf("cleanup batch: %w", err)
		}
		result.Deleted += int(deleted)
	}

	s.metrics.RecordCleanup(result.Deleted)
	scope := "all"
	if templateID != nil {
		scope = *templateID
	}
	s.logger.Info("generated shifts cleaned up", zap.String("scope", scope), zap.Int("deleted", result.Deleted))
	return result, nil
}
