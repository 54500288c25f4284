package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	// DefaultMaxDaysAhead is the rolling horizon used when a template does not set one.
	DefaultMaxDaysAhead = 10
	// DefaultCategory and DefaultVideoProvider seed new templates.
	DefaultCategory      = "teaching"
	DefaultVideoProvider = "zoom"
	// DeactivationTeacherDeleted is recorded when a template's teacher account is removed.
	DeactivationTeacherDeleted = "teacher_deleted"
)

// ShiftTemplate is a recurring class definition that produces teaching shifts.
type ShiftTemplate struct {
	ID              string         `db:"id" json:"id"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	TeacherName     string         `db:"teacher_name" json:"teacher_name"`
	StudentIDs      pq.StringArray `db:"student_ids" json:"student_ids"`
	StudentNames    pq.StringArray `db:"student_names" json:"student_names"`
	StartTime       string         `db:"start_time" json:"start_time"`
	EndTime         string         `db:"end_time" json:"end_time"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	AdminTimezone   string         `db:"admin_timezone" json:"admin_timezone"`
	TeacherTimezone string         `db:"teacher_timezone" json:"teacher_timezone"`
	Recurrence      Recurrence     `db:"enhanced_recurrence" json:"enhanced_recurrence"`

	MaxDaysAhead      int        `db:"max_days_ahead" json:"max_days_ahead"`
	LastGeneratedDate *time.Time `db:"last_generated_date" json:"last_generated_date,omitempty"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	DeactivatedAt     *time.Time `db:"deactivated_at" json:"deactivated_at,omitempty"`
	DeactivatedReason *string    `db:"deactivated_reason" json:"deactivated_reason,omitempty"`

	BaseShiftID      string    `db:"base_shift_id" json:"base_shift_id"`
	BaseShiftStart   time.Time `db:"base_shift_start" json:"base_shift_start"`
	BaseShiftEnd     time.Time `db:"base_shift_end" json:"base_shift_end"`
	CreatedByAdminID string    `db:"created_by_admin_id" json:"created_by_admin_id"`

	Category string `db:"category" json:"category"`
	ShiftMetadata

	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastModified time.Time `db:"last_modified" json:"last_modified"`
}

// ShiftMetadata is copied verbatim from a template onto each generated shift.
type ShiftMetadata struct {
	Subject            *string  `db:"subject" json:"subject,omitempty"`
	SubjectID          *string  `db:"subject_id" json:"subject_id,omitempty"`
	SubjectDisplayName *string  `db:"subject_display_name" json:"subject_display_name,omitempty"`
	AutoGeneratedName  *string  `db:"auto_generated_name" json:"auto_generated_name,omitempty"`
	CustomName         *string  `db:"custom_name" json:"custom_name,omitempty"`
	HourlyRate         *float64 `db:"hourly_rate" json:"hourly_rate,omitempty"`
	LeaderRole         *string  `db:"leader_role" json:"leader_role,omitempty"`
	Notes              *string  `db:"notes" json:"notes,omitempty"`
	VideoProvider      string   `db:"video_provider" json:"video_provider"`
	RecurrenceSeriesID *string  `db:"recurrence_series_id" json:"recurrence_series_id,omitempty"`
}

// EffectiveMaxDaysAhead falls back to DefaultMaxDaysAhead for unset horizons.
func (t *ShiftTemplate) EffectiveMaxDaysAhead() int {
	if t.MaxDaysAhead <= 0 {
		return DefaultMaxDaysAhead
	}
	return t.MaxDaysAhead
}
