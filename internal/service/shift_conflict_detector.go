package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/internal/repository"
)

type shiftIntervalReader interface {
	ListByTeacherInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.TeachingShift, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeachingShift, error)
}

// ShiftConflictDetector checks a candidate interval against the teacher's persisted shifts.
type ShiftConflictDetector struct {
	shifts shiftIntervalReader
	logger *zap.Logger
}

// NewShiftConflictDetector builds the detector.
func NewShiftConflictDetector(shifts shiftIntervalReader, logger *zap.Logger) *ShiftConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftConflictDetector{shifts: shifts, logger: logger}
}

// HasConflict reports whether [start, end) overlaps any shift of teacherID other than excludeID.
// Only shifts starting between the previous and the next UTC day are considered; when that range
// query cannot use its index the full teacher history is scanned instead.
func (d *ShiftConflictDetector) HasConflict(ctx context.Context, teacherID string, start, end time.Time, excludeID string) (bool, error) {
	dayStart := start.UTC().Truncate(24 * time.Hour)
	from := dayStart.Add(-24 * time.Hour)
	to := dayStart.Add(48 * time.Hour)

	shifts, err := d.shifts.ListByTeacherInRange(ctx, teacherID, from, to)
	if err != nil {
		if !errors.Is(err, repository.ErrIndexUnavailable) {
			return false, fmt.Errorf("conflict lookup: %w", err)
		}
		d.logger.Warn("conflict range query unavailable, scanning teacher shifts",
			zap.String("teacher_id", teacherID), zap.Error(err))
		shifts, err = d.shifts.ListByTeacher(ctx, teacherID)
		if err != nil {
			return false, fmt.Errorf("conflict fallback scan: %w", err)
		}
	}

	for i := range shifts {
		if shifts[i].ID == excludeID {
			continue
		}
		if shifts[i].Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}
