package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/internal/repository"
)

func shiftAt(id, teacherID string, start time.Time, minutes int) models.TeachingShift {
	return models.TeachingShift{
		ID:         id,
		TeacherID:  teacherID,
		ShiftStart: start,
		ShiftEnd:   start.Add(time.Duration(minutes) * time.Minute),
		Status:     models.ShiftScheduled,
	}
}

func TestShiftConflictDetector(t *testing.T) {
	start := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)
	store := newMemShiftStore(
		shiftAt("existing", "teacher-1", start.Add(30*time.Minute), 60),
		shiftAt("adjacent", "teacher-1", start.Add(-time.Hour), 60),
		shiftAt("other-teacher", "teacher-2", start, 60),
		models.TeachingShift{ID: "unscheduled", TeacherID: "teacher-1"},
	)
	detector := NewShiftConflictDetector(store, nil)

	conflict, err := detector.HasConflict(context.Background(), "teacher-1", start, start.Add(time.Hour), "")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = detector.HasConflict(context.Background(), "teacher-1", start, start.Add(time.Hour), "existing")
	require.NoError(t, err)
	assert.False(t, conflict, "adjacent intervals and excluded ids never conflict")

	conflict, err = detector.HasConflict(context.Background(), "teacher-3", start, start.Add(time.Hour), "")
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestShiftConflictDetectorFallsBackWhenIndexUnavailable(t *testing.T) {
	start := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)
	store := newMemShiftStore(shiftAt("existing", "teacher-1", start, 60))
	store.rangeErr = fmt.Errorf("list teacher shifts in range: %w", repository.ErrIndexUnavailable)
	detector := NewShiftConflictDetector(store, nil)

	conflict, err := detector.HasConflict(context.Background(), "teacher-1", start, start.Add(time.Hour), "")
	require.NoError(t, err)
	assert.True(t, conflict)
}

func TestShiftConflictDetectorPropagatesOtherErrors(t *testing.T) {
	store := newMemShiftStore()
	store.rangeErr = errors.New("connection reset")
	detector := NewShiftConflictDetector(store, nil)

	_, err := detector.HasConflict(context.Background(), "teacher-1", time.Now(), time.Now().Add(time.Hour), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrIndexUnavailable)
}
