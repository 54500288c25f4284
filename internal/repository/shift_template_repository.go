package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

const shiftTemplateColumns = `id, teacher_id, teacher_name, student_ids, student_names, start_time, end_time,
duration_minutes, admin_timezone, teacher_timezone, enhanced_recurrence, max_days_ahead, last_generated_date,
is_active, deactivated_at, deactivated_reason, base_shift_id, base_shift_start, base_shift_end,
created_by_admin_id, subject, subject_id, subject_display_name, auto_generated_name, custom_name, hourly_rate,
category, leader_role, notes, video_provider, recurrence_series_id, created_at, last_modified`

// ShiftTemplateFilter narrows template listings.
type ShiftTemplateFilter struct {
	TeacherID  string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// ShiftTemplateRepository persists shift templates.
type ShiftTemplateRepository struct {
	db *sqlx.DB
}

// NewShiftTemplateRepository builds the repository.
func NewShiftTemplateRepository(db *sqlx.DB) *ShiftTemplateRepository {
	return &ShiftTemplateRepository{db: db}
}

func (r *ShiftTemplateRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert creates the template or replaces every field of an existing one with the same id.
func (r *ShiftTemplateRepository) Upsert(ctx context.Context, tpl *models.ShiftTemplate) error {
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.LastModified = now

	const query = `
INSERT INTO shift_templates (` + shiftTemplateColumns + `)
VALUES (:id, :teacher_id, :teacher_name, :student_ids, :student_names, :start_time, :end_time,
:duration_minutes, :admin_timezone, :teacher_timezone, :enhanced_recurrence, :max_days_ahead, :last_generated_date,
:is_active, :deactivated_at, :deactivated_reason, :base_shift_id, :base_shift_start, :base_shift_end,
:created_by_admin_id, :subject, :subject_id, :subject_display_name, :auto_generated_name, :custom_name, :hourly_rate,
:category, :leader_role, :notes, :video_provider, :recurrence_series_id, :created_at, :last_modified)
ON CONFLICT (id) DO UPDATE
SET teacher_id = EXCLUDED.teacher_id,
    teacher_name = EXCLUDED.teacher_name,
    student_ids = EXCLUDED.student_ids,
    student_names = EXCLUDED.student_names,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    duration_minutes = EXCLUDED.duration_minutes,
    admin_timezone = EXCLUDED.admin_timezone,
    teacher_timezone = EXCLUDED.teacher_timezone,
    enhanced_recurrence = EXCLUDED.enhanced_recurrence,
    max_days_ahead = EXCLUDED.max_days_ahead,
    is_active = EXCLUDED.is_active,
    deactivated_at = EXCLUDED.deactivated_at,
    deactivated_reason = EXCLUDED.deactivated_reason,
    base_shift_id = EXCLUDED.base_shift_id,
    base_shift_start = EXCLUDED.base_shift_start,
    base_shift_end = EXCLUDED.base_shift_end,
    created_by_admin_id = EXCLUDED.created_by_admin_id,
    subject = EXCLUDED.subject,
    subject_id = EXCLUDED.subject_id,
    subject_display_name = EXCLUDED.subject_display_name,
    auto_generated_name = EXCLUDED.auto_generated_name,
    custom_name = EXCLUDED.custom_name,
    hourly_rate = EXCLUDED.hourly_rate,
    category = EXCLUDED.category,
    leader_role = EXCLUDED.leader_role,
    notes = EXCLUDED.notes,
    video_provider = EXCLUDED.video_provider,
    recurrence_series_id = EXCLUDED.recurrence_series_id,
    last_modified = EXCLUDED.last_modified`

	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("upsert shift template: %w", err)
	}
	return nil
}

// Update writes the mutable fields of an existing template.
func (r *ShiftTemplateRepository) Update(ctx context.Context, tpl *models.ShiftTemplate) error {
	tpl.LastModified = time.Now().UTC()

	const query = `
UPDATE shift_templates
SET teacher_name = :teacher_name,
    student_ids = :student_ids,
    student_names = :student_names,
    start_time = :start_time,
    end_time = :end_time,
    duration_minutes = :duration_minutes,
    admin_timezone = :admin_timezone,
    teacher_timezone = :teacher_timezone,
    enhanced_recurrence = :enhanced_recurrence,
    max_days_ahead = :max_days_ahead,
    is_active = :is_active,
    deactivated_at = :deactivated_at,
    deactivated_reason = :deactivated_reason,
    subject = :subject,
    subject_id = :subject_id,
    subject_display_name = :subject_display_name,
    auto_generated_name = :auto_generated_name,
    custom_name = :custom_name,
    hourly_rate = :hourly_rate,
    category = :category,
    leader_role = :leader_role,
    notes = :notes,
    video_provider = :video_provider,
    recurrence_series_id = :recurrence_series_id,
    last_modified = :last_modified
WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, tpl)
	if err != nil {
		return fmt.Errorf("update shift template: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns the template or sql.ErrNoRows.
func (r *ShiftTemplateRepository) FindByID(ctx context.Context, id string) (*models.ShiftTemplate, error) {
	query := `SELECT ` + shiftTemplateColumns + ` FROM shift_templates WHERE id = $1`
	var tpl models.ShiftTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find shift template: %w", err)
	}
	return &tpl, nil
}

// List returns templates matching filter and the unpaginated total.
func (r *ShiftTemplateRepository) List(ctx context.Context, filter ShiftTemplateFilter) ([]models.ShiftTemplate, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM shift_templates WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count shift templates: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM shift_templates WHERE %s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		shiftTemplateColumns, where, len(args)-1, len(args))

	var templates []models.ShiftTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list shift templates: %w", err)
	}
	return templates, total, nil
}

// ListActive returns every active template.
func (r *ShiftTemplateRepository) ListActive(ctx context.Context) ([]models.ShiftTemplate, error) {
	query := `SELECT ` + shiftTemplateColumns + ` FROM shift_templates WHERE is_active = TRUE ORDER BY id ASC`
	var templates []models.ShiftTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list active shift templates: %w", err)
	}
	return templates, nil
}

// ListActiveIDsByTeacher returns ids of active templates owned by teacherID.
func (r *ShiftTemplateRepository) ListActiveIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT id FROM shift_templates WHERE teacher_id = $1 AND is_active = TRUE ORDER BY id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher shift templates: %w", err)
	}
	return ids, nil
}

// SetLastGeneratedDate records the calendar day of the latest materializer run.
func (r *ShiftTemplateRepository) SetLastGeneratedDate(ctx context.Context, id string, day time.Time) error {
	const query = `UPDATE shift_templates SET last_generated_date = $2, last_modified = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, day.Format("2006-01-02"), time.Now().UTC()); err != nil {
		return fmt.Errorf("set last generated date: %w", err)
	}
	return nil
}

// AppendExcludedDate adds date to enhanced_recurrence.excludedDates unless it is already present.
// It reports whether the array changed.
func (r *ShiftTemplateRepository) AppendExcludedDate(ctx context.Context, id string, date time.Time) (bool, error) {
	const query = `
UPDATE shift_templates
SET enhanced_recurrence = jsonb_set(
        enhanced_recurrence,
        '{excludedDates}',
        COALESCE(enhanced_recurrence->'excludedDates', '[]'::jsonb) || to_jsonb($2::text),
        true),
    last_modified = $3
WHERE id = $1
  AND NOT (COALESCE(enhanced_recurrence->'excludedDates', '[]'::jsonb) @> jsonb_build_array($2::text))`

	res, err := r.db.ExecContext(ctx, query, id, date.UTC().Format(time.RFC3339), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("append excluded date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append excluded date rows: %w", err)
	}
	return affected > 0, nil
}

// Deactivate marks the given templates inactive with reason.
func (r *ShiftTemplateRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, ids []string, reason string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `
UPDATE shift_templates
SET is_active = FALSE, deactivated_at = $2, deactivated_reason = $3, last_modified = $2
WHERE id = ANY($1)`
	res, err := r.exec(exec).ExecContext(ctx, query, pq.Array(ids), at.UTC(), reason)
	if err != nil {
		return 0, fmt.Errorf("deactivate shift templates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate shift templates rows: %w", err)
	}
	return affected, nil
}
