package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/zonedtime"
)

type generatedShiftStore interface {
	generatedShiftWriter
	FindByID(ctx context.Context, id string) (*models.TeachingShift, error)
}

type templateGenerationMarker interface {
	SetLastGeneratedDate(ctx context.Context, id string, day time.Time) error
}

type shiftConflictChecker interface {
	HasConflict(ctx context.Context, teacherID string, start, end time.Time, excludeID string) (bool, error)
}

// MaterializerConfig tunes persistence batching.
type MaterializerConfig struct {
	BatchSize int
}

// ShiftMaterializerService expands a template into concrete teaching shifts over its rolling window.
type ShiftMaterializerService struct {
	shifts    generatedShiftStore
	templates templateGenerationMarker
	conflicts shiftConflictChecker
	tx        txRunner
	clock     zonedtime.Clock
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       MaterializerConfig
}

// NewShiftMaterializerService wires materializer dependencies.
func NewShiftMaterializerService(
	shifts generatedShiftStore,
	templates templateGenerationMarker,
	conflicts shiftConflictChecker,
	tx txRunner,
	clock zonedtime.Clock,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg MaterializerConfig,
) *ShiftMaterializerService {
	if clock == nil {
		clock = zonedtime.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftMaterializerService{
		shifts:    shifts,
		templates: templates,
		conflicts: conflicts,
		tx:        tx,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

type occurrenceTiming struct {
	start    zonedtime.LocalTime
	duration time.Duration
}

// Generate materializes tpl for each day from today (admin timezone) up to today+max_days_ahead.
// Days are processed sequentially; a failing lookup aborts the run but already committed batches stay.
func (s *ShiftMaterializerService) Generate(ctx context.Context, templateID string, tpl *models.ShiftTemplate) (models.GenerationStats, error) {
	var stats models.GenerationStats

	defaultStart, err := zonedtime.ParseLocalTime(tpl.StartTime)
	if err != nil {
		return stats, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start_time")
	}
	if tpl.DurationMinutes <= 0 {
		return stats, appErrors.Clone(appErrors.ErrValidation, "duration_minutes must be positive")
	}
	defaults := occurrenceTiming{start: defaultStart, duration: time.Duration(tpl.DurationMinutes) * time.Minute}

	loc := zonedtime.Location(tpl.AdminTimezone)
	today := zonedtime.StartOfDay(s.clock.Now(), loc)
	horizon := tpl.EffectiveMaxDaysAhead()
	rec := tpl.Recurrence

	var baseDay, endDay *time.Time
	if !tpl.BaseShiftStart.IsZero() {
		d := zonedtime.StartOfDay(tpl.BaseShiftStart, loc)
		baseDay = &d
	}
	if rec.EndDate != nil {
		d := zonedtime.StartOfDay(*rec.EndDate, loc)
		endDay = &d
	}

	batch := NewBatchWriter(s.tx, s.shifts, s.cfg.BatchSize)
	logger := s.logger.With(zap.String("template_id", templateID), zap.String("teacher_id", tpl.TeacherID))

	for i := 0; i < horizon; i++ {
		day := zonedtime.AddDays(today, i)

		if baseDay != nil && day.Before(*baseDay) {
			stats.SkippedNotStarted++
			continue
		}
		if endDay != nil && day.After(*endDay) {
			stats.SkippedOutsideEndDate++
			continue
		}
		if !MatchesRecurrence(day, rec, loc) {
			stats.SkippedNoMatch++
			continue
		}

		timing := defaults
		if slot, ok := rec.TimeSlotFor(zonedtime.ISOWeekday(day)); ok {
			timing = occurrenceTiming{
				start:    zonedtime.LocalTime{Hour: slot.StartHour, Minute: slot.StartMinute},
				duration: slot.Duration(),
			}
		}
		start := zonedtime.ToInstant(day, timing.start, loc)
		end := start.Add(timing.duration)
		shift := buildGeneratedShift(templateID, tpl, start, end)

		if batch.PendingOverlap(shift) {
			stats.SkippedConflicts++
			continue
		}
		conflict, err := s.conflicts.HasConflict(ctx, tpl.TeacherID, start, end, shift.ID)
		if err != nil {
			return stats, err
		}
		if conflict {
			stats.SkippedConflicts++
			continue
		}

		existing, err := s.shifts.FindByID(ctx, shift.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return stats, err
		}
		switch {
		case existing == nil:
			batch.Add(WriteInsert, shift)
			stats.Created++
		case existing.TeacherModified:
			stats.SkippedTeacherModified++
			continue
		case existing.Status.IsProtected():
			stats.SkippedTerminalState++
			continue
		default:
			batch.Add(WritePatch, shift)
			stats.Refreshed++
		}

		if err := batch.FlushIfFull(ctx); err != nil {
			return stats, err
		}
	}

	if err := batch.FlushRemaining(ctx); err != nil {
		return stats, err
	}
	if result := batch.Result(); result.NoOps > 0 {
		logger.Info("some generated shift writes were no-ops", zap.Int("no_ops", result.NoOps))
	}

	if err := s.templates.SetLastGeneratedDate(ctx, templateID, today); err != nil {
		return stats, fmt.Errorf("record generation date: %w", err)
	}

	s.metrics.RecordGeneration(stats)
	if stats.Created == 0 && stats.SkippedNoMatch == horizon {
		logger.Warn("template matched no day in its window",
			zap.String("recurrence", string(rec.Kind())), zap.Int("max_days_ahead", horizon))
	}
	logger.Debug("template materialized", zap.Any("stats", stats))
	return stats, nil
}

func buildGeneratedShift(templateID string, tpl *models.ShiftTemplate, start, end time.Time) *models.TeachingShift {
	id := models.GeneratedShiftID(templateID, start)
	category := strings.TrimSpace(tpl.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	meta := tpl.ShiftMetadata
	meta.VideoProvider = strings.ToLower(strings.TrimSpace(meta.VideoProvider))
	if meta.VideoProvider == "" {
		meta.VideoProvider = models.DefaultVideoProvider
	}
	tplID := templateID

	return &models.TeachingShift{
		ID:                    id,
		TeacherID:             tpl.TeacherID,
		TeacherName:           tpl.TeacherName,
		StudentIDs:            append([]string(nil), tpl.StudentIDs...),
		StudentNames:          append([]string(nil), tpl.StudentNames...),
		ShiftStart:            start.UTC(),
		ShiftEnd:              end.UTC(),
		AdminTimezone:         zonedtime.NormalizeTimezone(tpl.AdminTimezone),
		TeacherTimezone:       zonedtime.NormalizeTimezone(tpl.TeacherTimezone),
		ShiftCategory:         category,
		ShiftMetadata:         meta,
		LiveKitRoomName:       models.LiveKitRoomFor(meta.VideoProvider, id),
		GeneratedFromTemplate: true,
		TemplateID:            &tplID,
		Status:                models.ShiftScheduled,
	}
}
