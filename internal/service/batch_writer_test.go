package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTx struct{}

func (failingTx) RunInTx(context.Context, func(exec sqlx.ExtContext) error) error {
	return errors.New("tx aborted")
}

func TestBatchWriterFlushesAtLimit(t *testing.T) {
	store := newMemShiftStore()
	tx := &fakeTx{}
	writer := NewBatchWriter(tx, store, 2)
	base := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		shift := shiftAt("s"+string(rune('a'+i)), "teacher-1", base.Add(time.Duration(i)*24*time.Hour), 60)
		writer.Add(WriteInsert, &shift)
		require.NoError(t, writer.FlushIfFull(context.Background()))
	}
	assert.Equal(t, 2, tx.calls)
	require.NoError(t, writer.FlushRemaining(context.Background()))
	require.NoError(t, writer.FlushRemaining(context.Background()))

	assert.Equal(t, BatchResult{Committed: 5, Batches: 3}, writer.Result())
	assert.Len(t, store.all(), 5)
}

func TestBatchWriterCountsNoOpsAndPendingOverlap(t *testing.T) {
	base := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)
	existing := shiftAt("dup", "teacher-1", base, 60)
	store := newMemShiftStore(existing)
	writer := NewBatchWriter(&fakeTx{}, store, 0)

	dup := shiftAt("dup", "teacher-1", base, 60)
	writer.Add(WriteInsert, &dup)

	overlapping := shiftAt("other", "teacher-1", base.Add(30*time.Minute), 60)
	assert.True(t, writer.PendingOverlap(&overlapping))
	otherTeacher := shiftAt("other", "teacher-2", base, 60)
	assert.False(t, writer.PendingOverlap(&otherTeacher))

	require.NoError(t, writer.FlushRemaining(context.Background()))
	assert.Equal(t, BatchResult{NoOps: 1, Batches: 1}, writer.Result())
}

func TestBatchWriterSurfacesTxErrors(t *testing.T) {
	writer := NewBatchWriter(failingTx{}, newMemShiftStore(), 1)
	shift := shiftAt("a", "teacher-1", time.Now(), 60)
	writer.Add(WritePatch, &shift)

	err := writer.FlushIfFull(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit shift batch")
}
