package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

const teachingShiftColumns = `id, teacher_id, teacher_name, student_ids, student_names, shift_start, shift_end,
admin_timezone, teacher_timezone, shift_category, subject, subject_id, subject_display_name, auto_generated_name,
custom_name, hourly_rate, leader_role, notes, video_provider, recurrence_series_id, livekit_room_name,
generated_from_template, template_id, teacher_modified, teacher_modified_at, status, created_at, last_modified`

const shiftIntervalColumns = `id, teacher_id, shift_start, shift_end, status, teacher_modified`

// TeachingShiftRepository persists teaching shifts.
type TeachingShiftRepository struct {
	db *sqlx.DB
}

// NewTeachingShiftRepository builds the repository.
func NewTeachingShiftRepository(db *sqlx.DB) *TeachingShiftRepository {
	return &TeachingShiftRepository{db: db}
}

func (r *TeachingShiftRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns the shift or sql.ErrNoRows.
func (r *TeachingShiftRepository) FindByID(ctx context.Context, id string) (*models.TeachingShift, error) {
	query := `SELECT ` + teachingShiftColumns + ` FROM teaching_shifts WHERE id = $1`
	var shift models.TeachingShift
	if err := r.db.GetContext(ctx, &shift, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teaching shift: %w", err)
	}
	return &shift, nil
}

// ListByTeacherInRange returns the teacher's shifts starting in [from, to).
// Planner failures surface as ErrIndexUnavailable so callers can fall back to ListByTeacher.
func (r *TeachingShiftRepository) ListByTeacherInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.TeachingShift, error) {
	query := `SELECT ` + shiftIntervalColumns + ` FROM teaching_shifts
WHERE teacher_id = $1 AND shift_start >= $2 AND shift_start < $3 ORDER BY shift_start ASC`
	var shifts []models.TeachingShift
	if err := r.db.SelectContext(ctx, &shifts, query, teacherID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("list teacher shifts in range: %w", classifyRangeError(ctx, err))
	}
	return shifts, nil
}

// ListByTeacher returns every shift of the teacher without a date filter.
func (r *TeachingShiftRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeachingShift, error) {
	query := `SELECT ` + shiftIntervalColumns + ` FROM teaching_shifts WHERE teacher_id = $1`
	var shifts []models.TeachingShift
	if err := r.db.SelectContext(ctx, &shifts, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher shifts: %w", err)
	}
	return shifts, nil
}

// InsertIfAbsent creates shift unless its id already exists, reporting whether a row was written.
func (r *TeachingShiftRepository) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, shift *models.TeachingShift) (bool, error) {
	now := time.Now().UTC()
	if shift.CreatedAt.IsZero() {
		shift.CreatedAt = now
	}
	shift.LastModified = now

	const query = `
INSERT INTO teaching_shifts (` + teachingShiftColumns + `)
VALUES (:id, :teacher_id, :teacher_name, :student_ids, :student_names, :shift_start, :shift_end,
:admin_timezone, :teacher_timezone, :shift_category, :subject, :subject_id, :subject_display_name, :auto_generated_name,
:custom_name, :hourly_rate, :leader_role, :notes, :video_provider, :recurrence_series_id, :livekit_room_name,
:generated_from_template, :template_id, :teacher_modified, :teacher_modified_at, :status, :created_at, :last_modified)
ON CONFLICT (id) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, shift)
	if err != nil {
		return false, fmt.Errorf("insert teaching shift: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert teaching shift rows: %w", err)
	}
	return affected > 0, nil
}

// PatchGenerated refreshes the template-derived fields of an editable generated shift.
// Teacher-modified or non-pending shifts are left untouched and reported as not patched.
func (r *TeachingShiftRepository) PatchGenerated(ctx context.Context, exec sqlx.ExtContext, shift *models.TeachingShift) (bool, error) {
	shift.LastModified = time.Now().UTC()

	const query = `
UPDATE teaching_shifts
SET teacher_name = :teacher_name,
    student_ids = :student_ids,
    student_names = :student_names,
    shift_start = :shift_start,
    shift_end = :shift_end,
    admin_timezone = :admin_timezone,
    teacher_timezone = :teacher_timezone,
    shift_category = :shift_category,
    subject = :subject,
    subject_id = :subject_id,
    subject_display_name = :subject_display_name,
    auto_generated_name = :auto_generated_name,
    custom_name = :custom_name,
    hourly_rate = :hourly_rate,
    leader_role = :leader_role,
    notes = :notes,
    video_provider = :video_provider,
    recurrence_series_id = :recurrence_series_id,
    livekit_room_name = :livekit_room_name,
    last_modified = :last_modified
WHERE id = :id
  AND generated_from_template = TRUE
  AND teacher_modified = FALSE
  AND status IN ('scheduled', 'pending')`

	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, shift)
	if err != nil {
		return false, fmt.Errorf("patch generated shift: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("patch generated shift rows: %w", err)
	}
	return affected > 0, nil
}

// ListCleanupCandidates returns ids of generated shifts still scheduled or missed,
// optionally limited to one template. Teacher-modified shifts are never candidates.
func (r *TeachingShiftRepository) ListCleanupCandidates(ctx context.Context, templateID *string) ([]string, error) {
	query := `SELECT id FROM teaching_shifts
WHERE generated_from_template = TRUE AND status IN ('scheduled', 'missed') AND teacher_modified = FALSE`
	args := []interface{}{}
	if templateID != nil {
		query += ` AND template_id = $1`
		args = append(args, *templateID)
	}
	query += ` ORDER BY id ASC`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list cleanup candidates: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes the given shifts.
func (r *TeachingShiftRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM teaching_shifts WHERE id = ANY($1)`
	res, err := r.exec(exec).ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete teaching shifts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete teaching shifts rows: %w", err)
	}
	return affected, nil
}
