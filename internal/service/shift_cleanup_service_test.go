package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

func TestShiftCleanupDeletesInBatches(t *testing.T) {
	tplA, tplB := "tplA", "tplB"
	base := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)
	var shifts []models.TeachingShift
	for i := 0; i < 5; i++ {
		s := shiftAt(fmt.Sprintf("a%d", i), "teacher-1", base.Add(time.Duration(i)*time.Hour), 30)
		s.GeneratedFromTemplate = true
		s.TemplateID = &tplA
		shifts = append(shifts, s)
	}
	missed := shiftAt("a-missed", "teacher-1", base.Add(-48*time.Hour), 30)
	missed.GeneratedFromTemplate, missed.TemplateID, missed.Status = true, &tplA, models.ShiftMissed
	active := shiftAt("a-active", "teacher-1", base.Add(-24*time.Hour), 30)
	active.GeneratedFromTemplate, active.TemplateID, active.Status = true, &tplA, models.ShiftActive
	manual := shiftAt("manual", "teacher-1", base.Add(-72*time.Hour), 30)
	other := shiftAt("b0", "teacher-2", base, 30)
	other.GeneratedFromTemplate, other.TemplateID = true, &tplB
	shifts = append(shifts, missed, active, manual, other)

	store := newMemShiftStore(shifts...)
	tx := &fakeTx{}
	svc := NewShiftCleanupService(store, tx, nil, nil, 2)

	result, err := svc.Cleanup(context.Background(), &tplA)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Deleted)
	assert.Equal(t, 3, tx.calls)

	remaining := map[string]bool{}
	for _, s := range store.all() {
		remaining[s.ID] = true
	}
	assert.Equal(t, map[string]bool{"a-active": true, "manual": true, "b0": true}, remaining)

	result, err = svc.Cleanup(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
}
