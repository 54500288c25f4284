package models

import "time"

// GenerationStats counts the outcome of each day in a materializer window.
type GenerationStats struct {
	Created                int `json:"created"`
	Refreshed              int `json:"refreshed"`
	SkippedConflicts       int `json:"skippedConflicts"`
	SkippedTeacherModified int `json:"skippedTeacherModified"`
	SkippedTerminalState   int `json:"skippedTerminalState"`
	SkippedNotStarted      int `json:"skippedNotStarted"`
	SkippedOutsideEndDate  int `json:"skippedOutsideEndDate"`
	SkippedNoMatch         int `json:"skippedNoMatch"`
}

// Skipped sums every skip counter.
func (s GenerationStats) Skipped() int {
	return s.SkippedConflicts + s.SkippedTeacherModified + s.SkippedTerminalState +
		s.SkippedNotStarted + s.SkippedOutsideEndDate + s.SkippedNoMatch
}

// CleanupResult reports how many generated shifts a sweep removed.
type CleanupResult struct {
	Deleted int `json:"deleted"`
}

// TemplateOperationResult is returned by create, update and generate.
type TemplateOperationResult struct {
	TemplateID      string           `json:"templateId"`
	Generated       *GenerationStats `json:"generated,omitempty"`
	CleanupDeleted  int              `json:"cleanup_deleted"`
	SkippedInactive bool             `json:"skippedInactive,omitempty"`
}

// TeacherRunSummary is the per-teacher line of a daily run.
type TeacherRunSummary struct {
	TeacherID     string `json:"teacherId"`
	Name          string `json:"name"`
	ShiftsCreated int    `json:"shiftsCreated"`
}

// RunSummary aggregates one scheduled runner pass.
type RunSummary struct {
	RunID              string              `json:"runId"`
	TotalTemplates     int                 `json:"totalTemplates"`
	TotalShiftsCreated int                 `json:"totalShiftsCreated"`
	TotalSkipped       int                 `json:"totalSkipped"`
	FailedTemplates    []string            `json:"failedTemplates"`
	TeachersAffected   []TeacherRunSummary `json:"teachersAffected"`
	RunDate            time.Time           `json:"runDate"`
	Reports            []RunReportFile     `json:"reports,omitempty"`
}

// RunReportFile is an exported rendering of a RunSummary.
type RunReportFile struct {
	Format      string     `json:"format"`
	Path        string     `json:"-"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}
