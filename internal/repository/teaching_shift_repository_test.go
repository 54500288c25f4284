package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

func TestTeachingShiftRepositoryListByTeacherInRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeachingShiftRepository(db)

	from := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	to := from.Add(72 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "shift_start", "shift_end", "status", "teacher_modified"}).
		AddRow("s1", "teacher-1", from.Add(15*time.Hour), from.Add(16*time.Hour), "scheduled", false)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teacher_id = $1 AND shift_start >= $2 AND shift_start < $3")).
		WithArgs("teacher-1", from, to).
		WillReturnRows(rows)

	shifts, err := repo.ListByTeacherInRange(context.Background(), "teacher-1", from, to)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, models.ShiftScheduled, shifts[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeachingShiftRepositoryRangeMapsIndexFailures(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeachingShiftRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND shift_start >= $2")).
		WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})
	mock.ExpectQuery(regexp.QuoteMeta("AND shift_start >= $2")).
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

	now := time.Now()
	_, err := repo.ListByTeacherInRange(context.Background(), "teacher-1", now, now.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrIndexUnavailable))

	_, err = repo.ListByTeacherInRange(context.Background(), "teacher-1", now, now.Add(time.Hour))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIndexUnavailable))
}

func TestTeachingShiftRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeachingShiftRepository(db)

	mock.ExpectExec(`INSERT INTO teaching_shifts .* ON CONFLICT \(id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO teaching_shifts .* ON CONFLICT \(id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	shift := &models.TeachingShift{ID: "tpl_a_1", TeacherID: "teacher-1", Status: models.ShiftScheduled}
	inserted, err := repo.InsertIfAbsent(context.Background(), nil, shift)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(context.Background(), nil, shift)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeachingShiftRepositoryPatchGeneratedGuardsEditableState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeachingShiftRepository(db)

	mock.ExpectExec(`UPDATE teaching_shifts[\s\S]*teacher_modified = FALSE\s+AND status IN \('scheduled', 'pending'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	patched, err := repo.PatchGenerated(context.Background(), nil, &models.TeachingShift{ID: "tpl_a_1"})
	require.NoError(t, err)
	assert.False(t, patched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeachingShiftRepositoryCleanupCandidates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeachingShiftRepository(db)

	templateID := "tpl-1"
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('scheduled', 'missed') AND teacher_modified = FALSE AND template_id = $1 ORDER BY id ASC")).
		WithArgs(templateID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('scheduled', 'missed') AND teacher_modified = FALSE ORDER BY id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := repo.ListCleanupCandidates(context.Background(), &templateID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = repo.ListCleanupCandidates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunnerRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	runner := NewTxRunner(db)
	repo := NewTeachingShiftRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teaching_shifts WHERE id = ANY($1)")).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := runner.RunInTx(context.Background(), func(exec sqlx.ExtContext) error {
		_, err := repo.DeleteByIDs(context.Background(), exec, []string{"a"})
		return err
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teaching_shifts WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, runner.RunInTx(context.Background(), func(exec sqlx.ExtContext) error {
		_, err := repo.DeleteByIDs(context.Background(), exec, []string{"a"})
		return err
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
