package dto

import "time"

// WeekdayTimeSlotInput overrides the default time on one ISO weekday.
type WeekdayTimeSlotInput struct {
	StartHour   int `json:"start_hour" validate:"min=0,max=23"`
	StartMinute int `json:"start_minute" validate:"min=0,max=59"`
	EndHour     int `json:"end_hour" validate:"min=0,max=23"`
	EndMinute   int `json:"end_minute" validate:"min=0,max=59"`
}

// RecurrenceInput is the client shape of enhanced_recurrence. Dates are YYYY-MM-DD
// (admin-timezone calendar days) or RFC3339 instants.
type RecurrenceInput struct {
	Type              string                          `json:"type" validate:"omitempty,oneof=none daily weekly monthly yearly NONE DAILY WEEKLY MONTHLY YEARLY"`
	SelectedWeekdays  []int                           `json:"selectedWeekdays" validate:"omitempty,dive,min=1,max=7"`
	SelectedMonthDays []int                           `json:"selectedMonthDays" validate:"omitempty,dive,min=1,max=31"`
	SelectedMonths    []int                           `json:"selectedMonths" validate:"omitempty,dive,min=1,max=12"`
	ExcludedWeekdays  []int                           `json:"excludedWeekdays" validate:"omitempty,dive,min=1,max=7"`
	ExcludedDates     []string                        `json:"excludedDates"`
	WeekdayTimeSlots  map[string]WeekdayTimeSlotInput `json:"weekdayTimeSlots" validate:"omitempty,dive"`
	EndDate           *string                         `json:"endDate"`
}

// ShiftMetadataInput carries the pass-through fields copied onto generated shifts.
type ShiftMetadataInput struct {
	Subject            *string  `json:"subject"`
	SubjectID          *string  `json:"subject_id"`
	SubjectDisplayName *string  `json:"subject_display_name"`
	AutoGeneratedName  *string  `json:"auto_generated_name"`
	CustomName         *string  `json:"custom_name"`
	HourlyRate         *float64 `json:"hourly_rate" validate:"omitempty,min=0"`
	Category           *string  `json:"category"`
	LeaderRole         *string  `json:"leader_role"`
	Notes              *string  `json:"notes"`
	VideoProvider      *string  `json:"video_provider"`
	RecurrenceSeriesID *string  `json:"recurrence_series_id"`
}

// CreateShiftTemplateRequest creates (or replaces) the template for a base shift.
type CreateShiftTemplateRequest struct {
	TeacherID       string          `json:"teacher_id" validate:"required"`
	TeacherName     string          `json:"teacher_name"`
	StudentIDs      []string        `json:"student_ids"`
	StudentNames    []string        `json:"student_names"`
	StartTime       string          `json:"start_time" validate:"required"`
	EndTime         string          `json:"end_time" validate:"required"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,min=1"`
	AdminTimezone   string          `json:"admin_timezone"`
	TeacherTimezone string          `json:"teacher_timezone"`
	Recurrence      RecurrenceInput `json:"enhanced_recurrence"`
	RecurrenceEnd   *string         `json:"recurrence_end_date"`
	MaxDaysAhead    int             `json:"max_days_ahead" validate:"omitempty,min=1,max=366"`
	BaseShiftID     string          `json:"base_shift_id" validate:"required"`
	BaseShiftStart  *time.Time      `json:"base_shift_start" validate:"required"`
	BaseShiftEnd    *time.Time      `json:"base_shift_end" validate:"required"`
	CreatedByAdmin  *string         `json:"created_by_admin_id"`
	ShiftMetadataInput
}

// UpdateShiftTemplateRequest patches a template. Nil fields are left untouched.
type UpdateShiftTemplateRequest struct {
	TeacherName     *string          `json:"teacher_name"`
	StudentIDs      *[]string        `json:"student_ids"`
	StudentNames    *[]string        `json:"student_names"`
	StartTime       *string          `json:"start_time"`
	EndTime         *string          `json:"end_time"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,min=1"`
	AdminTimezone   *string          `json:"admin_timezone"`
	TeacherTimezone *string          `json:"teacher_timezone"`
	Recurrence      *RecurrenceInput `json:"enhanced_recurrence"`
	MaxDaysAhead    *int             `json:"max_days_ahead" validate:"omitempty,min=1,max=366"`
	IsActive        *bool            `json:"is_active"`
	ShiftMetadataInput
}

// ExcludeDateRequest adds one calendar day to a template's exclusions.
type ExcludeDateRequest struct {
	Date string `json:"date" validate:"required"`
}

// CleanupRequest optionally scopes a sweep to one template.
type CleanupRequest struct {
	TemplateID *string `json:"templateId"`
}

// ListShiftTemplatesQuery filters the template list.
type ListShiftTemplatesQuery struct {
	TeacherID  string `form:"teacherId"`
	ActiveOnly bool   `form:"activeOnly"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}
