package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/dto"
	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/internal/repository"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/logger"
	"github.com/noah-isme/sma-shift-api/pkg/zonedtime"
)

type shiftTemplateStore interface {
	Upsert(ctx context.Context, tpl *models.ShiftTemplate) error
	Update(ctx context.Context, tpl *models.ShiftTemplate) error
	FindByID(ctx context.Context, id string) (*models.ShiftTemplate, error)
	List(ctx context.Context, filter repository.ShiftTemplateFilter) ([]models.ShiftTemplate, int, error)
	AppendExcludedDate(ctx context.Context, id string, date time.Time) (bool, error)
	ListActiveIDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
	Deactivate(ctx context.Context, exec sqlx.ExtContext, ids []string, reason string, at time.Time) (int64, error)
}

type shiftGenerator interface {
	Generate(ctx context.Context, templateID string, tpl *models.ShiftTemplate) (models.GenerationStats, error)
}

type shiftCleaner interface {
	Cleanup(ctx context.Context, templateID *string) (models.CleanupResult, error)
}

// AdminChecker resolves whether a caller may manage templates.
type AdminChecker interface {
	IsAdmin(ctx context.Context, callerID string) (bool, error)
}

// ShiftTemplateConfig carries lifecycle defaults.
type ShiftTemplateConfig struct {
	DefaultMaxDaysAhead int
	BatchSize           int
}

// ShiftTemplateService manages the template lifecycle and triggers cleanup and materialization.
type ShiftTemplateService struct {
	templates shiftTemplateStore
	generator shiftGenerator
	cleaner   shiftCleaner
	admins    AdminChecker
	tx        txRunner
	clock     zonedtime.Clock
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ShiftTemplateConfig
}

// NewShiftTemplateService constructs the lifecycle manager.
func NewShiftTemplateService(
	templates shiftTemplateStore,
	generator shiftGenerator,
	cleaner shiftCleaner,
	admins AdminChecker,
	tx txRunner,
	clock zonedtime.Clock,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ShiftTemplateConfig,
) *ShiftTemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = zonedtime.SystemClock{}
	}
	if cfg.DefaultMaxDaysAhead <= 0 {
		cfg.DefaultMaxDaysAhead = models.DefaultMaxDaysAhead
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	return &ShiftTemplateService{
		templates: templates,
		generator: generator,
		cleaner:   cleaner,
		admins:    admins,
		tx:        tx,
		clock:     clock,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *ShiftTemplateService) requireAdmin(ctx context.Context, callerID string) error {
	ok, err := s.admins.IsAdmin(ctx, callerID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify permissions")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "admin privileges required")
	}
	return nil
}

func (s *ShiftTemplateService) load(ctx context.Context, id string) (*models.ShiftTemplate, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shift template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift template")
	}
	return tpl, nil
}

// Create persists the template for the base shift (replacing any previous one with the same id),
// sweeps its stale generated shifts and materializes the window once.
func (s *ShiftTemplateService) Create(ctx context.Context, callerID string, req dto.CreateShiftTemplateRequest) (*models.TemplateOperationResult, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift template payload")
	}
	if err := validateTiming(req.StartTime, req.EndTime, req.DurationMinutes); err != nil {
		return nil, err
	}

	adminTZ := zonedtime.NormalizeTimezone(req.AdminTimezone)
	loc := zonedtime.Location(adminTZ)
	rec, err := recurrenceFromInput(req.Recurrence, loc)
	if err != nil {
		return nil, err
	}
	if req.RecurrenceEnd != nil && strings.TrimSpace(*req.RecurrenceEnd) != "" {
		end, err := zonedtime.ParseDateInZone(*req.RecurrenceEnd, loc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurrence_end_date")
		}
		end = end.UTC()
		rec.EndDate = &end
	}

	maxDays := req.MaxDaysAhead
	if maxDays <= 0 {
		maxDays = s.cfg.DefaultMaxDaysAhead
	}
	createdBy := callerID
	if req.CreatedByAdmin != nil && strings.TrimSpace(*req.CreatedByAdmin) != "" {
		createdBy = strings.TrimSpace(*req.CreatedByAdmin)
	}

	tpl := &models.ShiftTemplate{
		ID:               strings.TrimSpace(req.BaseShiftID),
		TeacherID:        strings.TrimSpace(req.TeacherID),
		TeacherName:      req.TeacherName,
		StudentIDs:       nonNilStrings(req.StudentIDs),
		StudentNames:     nonNilStrings(req.StudentNames),
		StartTime:        canonicalLocalTime(req.StartTime),
		EndTime:          canonicalLocalTime(req.EndTime),
		DurationMinutes:  req.DurationMinutes,
		AdminTimezone:    adminTZ,
		TeacherTimezone:  zonedtime.NormalizeTimezone(req.TeacherTimezone),
		Recurrence:       rec,
		MaxDaysAhead:     maxDays,
		IsActive:         true,
		BaseShiftID:      strings.TrimSpace(req.BaseShiftID),
		BaseShiftStart:   req.BaseShiftStart.UTC(),
		BaseShiftEnd:     req.BaseShiftEnd.UTC(),
		CreatedByAdminID: createdBy,
		Category:         models.DefaultCategory,
	}
	tpl.ShiftMetadata.VideoProvider = models.DefaultVideoProvider
	applyMetadata(tpl, req.ShiftMetadataInput)

	if err := s.templates.Upsert(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save shift template")
	}

	result := &models.TemplateOperationResult{TemplateID: tpl.ID}
	s.sweepAndGenerate(ctx, tpl, result, true)
	s.logger.Info("shift template created",
		zap.String("template_id", tpl.ID), zap.String("teacher_id", tpl.TeacherID), zap.String("created_by", createdBy))
	return result, nil
}

// Update patches a template. Schedule changes sweep and regenerate; deactivation only sweeps.
func (s *ShiftTemplateService) Update(ctx context.Context, callerID, id string, req dto.UpdateShiftTemplateRequest) (*models.TemplateOperationResult, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift template payload")
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	tpl := *existing
	wasActive := existing.IsActive

	if req.TeacherName != nil {
		tpl.TeacherName = *req.TeacherName
	}
	if req.StudentIDs != nil {
		tpl.StudentIDs = nonNilStrings(*req.StudentIDs)
	}
	if req.StudentNames != nil {
		tpl.StudentNames = nonNilStrings(*req.StudentNames)
	}
	if req.StartTime != nil {
		tpl.StartTime = canonicalLocalTime(*req.StartTime)
	}
	if req.EndTime != nil {
		tpl.EndTime = canonicalLocalTime(*req.EndTime)
	}
	if req.DurationMinutes != nil {
		tpl.DurationMinutes = *req.DurationMinutes
	} else if req.StartTime != nil || req.EndTime != nil {
		if minutes, err := spanMinutes(tpl.StartTime, tpl.EndTime); err == nil {
			tpl.DurationMinutes = minutes
		}
	}
	if req.AdminTimezone != nil {
		tpl.AdminTimezone = zonedtime.NormalizeTimezone(*req.AdminTimezone)
	}
	if req.TeacherTimezone != nil {
		tpl.TeacherTimezone = zonedtime.NormalizeTimezone(*req.TeacherTimezone)
	}
	if req.Recurrence != nil {
		rec, err := recurrenceFromInput(*req.Recurrence, zonedtime.Location(tpl.AdminTimezone))
		if err != nil {
			return nil, err
		}
		tpl.Recurrence = rec
	}
	if req.MaxDaysAhead != nil {
		tpl.MaxDaysAhead = *req.MaxDaysAhead
	}
	if req.IsActive != nil && *req.IsActive != tpl.IsActive {
		tpl.IsActive = *req.IsActive
		if tpl.IsActive {
			tpl.DeactivatedAt = nil
			tpl.DeactivatedReason = nil
		} else {
			now := s.clock.Now().UTC()
			reason := "manual"
			tpl.DeactivatedAt = &now
			tpl.DeactivatedReason = &reason
		}
	}
	applyMetadata(&tpl, req.ShiftMetadataInput)

	if err := validateTiming(tpl.StartTime, tpl.EndTime, tpl.DurationMinutes); err != nil {
		return nil, err
	}
	if err := tpl.Recurrence.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.templates.Update(ctx, &tpl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shift template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update shift template")
	}

	scheduleChanged := tpl.StartTime != existing.StartTime ||
		tpl.EndTime != existing.EndTime ||
		tpl.DurationMinutes != existing.DurationMinutes ||
		tpl.AdminTimezone != existing.AdminTimezone ||
		tpl.EffectiveMaxDaysAhead() != existing.EffectiveMaxDaysAhead() ||
		recurrenceChanged(existing.Recurrence, tpl.Recurrence)
	deactivating := req.IsActive != nil && !*req.IsActive
	reactivated := !wasActive && tpl.IsActive
	regenerate := tpl.IsActive && (scheduleChanged || reactivated)

	result := &models.TemplateOperationResult{TemplateID: tpl.ID}
	if scheduleChanged || deactivating || regenerate {
		s.sweepAndGenerate(ctx, &tpl, result, regenerate)
	}

	s.logger.Info("shift template updated",
		zap.String("template_id", tpl.ID),
		zap.Bool("schedule_changed", scheduleChanged),
		zap.Bool("is_active", tpl.IsActive))
	return result, nil
}

// sweepAndGenerate runs the lifecycle side effects. Failures are logged and not returned.
func (s *ShiftTemplateService) sweepAndGenerate(ctx context.Context, tpl *models.ShiftTemplate, result *models.TemplateOperationResult, generate bool) {
	id := tpl.ID
	log := logger.WithContext(ctx, s.logger)
	cleanup, err := s.cleaner.Cleanup(ctx, &id)
	if err != nil {
		log.Warn("template cleanup failed", zap.String("template_id", id), zap.Error(err))
	}
	result.CleanupDeleted = cleanup.Deleted

	if !generate {
		return
	}
	stats, err := s.generator.Generate(ctx, id, tpl)
	if err != nil {
		log.Warn("template generation failed", zap.String("template_id", id), zap.Error(err))
		return
	}
	result.Generated = &stats
}

// Generate sweeps and re-materializes an active template on demand.
func (s *ShiftTemplateService) Generate(ctx context.Context, callerID, id string) (*models.TemplateOperationResult, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &models.TemplateOperationResult{TemplateID: tpl.ID}
	if !tpl.IsActive {
		result.SkippedInactive = true
		return result, nil
	}

	cleanup, err := s.cleaner.Cleanup(ctx, &tpl.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clean up generated shifts")
	}
	result.CleanupDeleted = cleanup.Deleted

	stats, err := s.generator.Generate(ctx, tpl.ID, tpl)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate shifts")
	}
	result.Generated = &stats
	return result, nil
}

// ExcludeDate adds one admin-timezone calendar day to the template's exclusions.
// Concurrent calls for different dates never lose each other's writes.
func (s *ShiftTemplateService) ExcludeDate(ctx context.Context, callerID, id string, req dto.ExcludeDateRequest) (*models.ShiftTemplate, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exclusion payload")
	}
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	loc := zonedtime.Location(tpl.AdminTimezone)
	date, err := zonedtime.ParseDateInZone(req.Date, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	day := zonedtime.StartOfDay(date, loc)

	added, err := s.templates.AppendExcludedDate(ctx, id, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to exclude date")
	}
	s.logger.Info("template date excluded",
		zap.String("template_id", id), zap.String("day", zonedtime.DayKey(day, loc)), zap.Bool("added", added))
	return s.load(ctx, id)
}

// Get returns one template.
func (s *ShiftTemplateService) Get(ctx context.Context, callerID, id string) (*models.ShiftTemplate, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// List returns templates, newest first.
func (s *ShiftTemplateService) List(ctx context.Context, callerID string, query dto.ListShiftTemplatesQuery) ([]models.ShiftTemplate, *models.Pagination, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, nil, err
	}
	filter := repository.ShiftTemplateFilter{
		TeacherID:  strings.TrimSpace(query.TeacherID),
		ActiveOnly: query.ActiveOnly,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	templates, total, err := s.templates.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shift templates")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return templates, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Cleanup runs the sweep on behalf of an admin, optionally scoped to one template.
func (s *ShiftTemplateService) Cleanup(ctx context.Context, callerID string, req dto.CleanupRequest) (*models.CleanupResult, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	var scope *string
	if req.TemplateID != nil && strings.TrimSpace(*req.TemplateID) != "" {
		id := strings.TrimSpace(*req.TemplateID)
		scope = &id
	}
	result, err := s.cleaner.Cleanup(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clean up generated shifts")
	}
	return &result, nil
}

// DeactivateForTeacher marks every active template of a removed teacher inactive.
func (s *ShiftTemplateService) DeactivateForTeacher(ctx context.Context, teacherID string) (int, error) {
	ids, err := s.templates.ListActiveIDsByTeacher(ctx, teacherID)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now().UTC()
	updated := 0
	for start := 0; start < len(ids); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		err := s.tx.RunInTx(ctx, func(exec sqlx.ExtContext) error {
			_, err := s.templates.Deactivate(ctx, exec, chunk, models.DeactivationTeacherDeleted, now)
			return err
		})
		if err != nil {
			return updated, err
		}
		updated += len(chunk)
	}
	if updated > 0 {
		s.logger.Info("templates deactivated for removed teacher",
			zap.String("teacher_id", teacherID), zap.Int("templates", updated))
	}
	return updated, nil
}

func recurrenceFromInput(in dto.RecurrenceInput, loc *time.Location) (models.Recurrence, error) {
	invalid := func(err error, msg string) (models.Recurrence, error) {
		return models.Recurrence{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
	}

	kind := models.RecurrenceKind(strings.ToLower(strings.TrimSpace(in.Type)))
	if kind == "" || kind == models.RecurrenceNone {
		return invalid(models.ErrInvalidRecurrence, "enhanced_recurrence.type is required")
	}
	if (kind != models.RecurrenceWeekly && len(in.SelectedWeekdays) > 0) ||
		(kind != models.RecurrenceMonthly && len(in.SelectedMonthDays) > 0) ||
		(kind != models.RecurrenceYearly && len(in.SelectedMonths) > 0) {
		return invalid(models.ErrInvalidRecurrence, "enhanced_recurrence selectors do not match type")
	}

	rec, err := models.NewRecurrence(string(kind), in.SelectedWeekdays, in.SelectedMonthDays, in.SelectedMonths)
	if err != nil {
		return invalid(err, err.Error())
	}
	rec.ExcludedWeekdays = append([]int(nil), in.ExcludedWeekdays...)

	for _, raw := range in.ExcludedDates {
		date, err := zonedtime.ParseDateInZone(raw, loc)
		if err != nil {
			return invalid(err, "invalid excludedDates value "+strconv.Quote(raw))
		}
		rec.ExcludedDates = append(rec.ExcludedDates, date.UTC())
	}

	if len(in.WeekdayTimeSlots) > 0 {
		rec.WeekdayTimeSlots = make(map[int]models.WeekdayTimeSlot, len(in.WeekdayTimeSlots))
		for key, slot := range in.WeekdayTimeSlots {
			wd, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return invalid(err, "invalid weekdayTimeSlots key "+strconv.Quote(key))
			}
			rec.WeekdayTimeSlots[wd] = models.WeekdayTimeSlot{
				StartHour:   slot.StartHour,
				StartMinute: slot.StartMinute,
				EndHour:     slot.EndHour,
				EndMinute:   slot.EndMinute,
			}
		}
	}

	if in.EndDate != nil && strings.TrimSpace(*in.EndDate) != "" {
		end, err := zonedtime.ParseDateInZone(*in.EndDate, loc)
		if err != nil {
			return invalid(err, "invalid endDate")
		}
		end = end.UTC()
		rec.EndDate = &end
	}

	if err := rec.Validate(); err != nil {
		return invalid(err, err.Error())
	}
	return rec, nil
}

func recurrenceChanged(before, after models.Recurrence) bool {
	a, errA := json.Marshal(before)
	b, errB := json.Marshal(after)
	if errA != nil || errB != nil {
		return true
	}
	return !bytes.Equal(a, b)
}

// spanMinutes is the wall-clock length from start to end, wrapping past midnight.
// Equal times are a full day.
func spanMinutes(start, end string) (int, error) {
	s, err := zonedtime.ParseLocalTime(start)
	if err != nil {
		return 0, err
	}
	e, err := zonedtime.ParseLocalTime(end)
	if err != nil {
		return 0, err
	}
	minutes := (e.MinutesOfDay() - s.MinutesOfDay() + 24*60) % (24 * 60)
	if minutes == 0 {
		minutes = 24 * 60
	}
	return minutes, nil
}

func validateTiming(start, end string, duration int) error {
	span, err := spanMinutes(start, end)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start_time and end_time must be HH:mm")
	}
	if duration <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "duration_minutes must be positive")
	}
	if span%(24*60) != duration%(24*60) {
		return appErrors.Clone(appErrors.ErrValidation, "duration_minutes does not match start_time and end_time")
	}
	return nil
}

func canonicalLocalTime(raw string) string {
	t, err := zonedtime.ParseLocalTime(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return t.String()
}

func applyMetadata(tpl *models.ShiftTemplate, in dto.ShiftMetadataInput) {
	meta := &tpl.ShiftMetadata
	if in.Subject != nil {
		meta.Subject = in.Subject
	}
	if in.SubjectID != nil {
		meta.SubjectID = in.SubjectID
	}
	if in.SubjectDisplayName != nil {
		meta.SubjectDisplayName = in.SubjectDisplayName
	}
	if in.AutoGeneratedName != nil {
		meta.AutoGeneratedName = in.AutoGeneratedName
	}
	if in.CustomName != nil {
		meta.CustomName = in.CustomName
	}
	if in.HourlyRate != nil {
		meta.HourlyRate = in.HourlyRate
	}
	if in.LeaderRole != nil {
		meta.LeaderRole = in.LeaderRole
	}
	if in.Notes != nil {
		meta.Notes = in.Notes
	}
	if in.RecurrenceSeriesID != nil {
		meta.RecurrenceSeriesID = in.RecurrenceSeriesID
	}
	if in.VideoProvider != nil {
		if provider := strings.ToLower(strings.TrimSpace(*in.VideoProvider)); provider != "" {
			meta.VideoProvider = provider
		}
	}
	if in.Category != nil {
		if category := strings.TrimSpace(*in.Category); category != "" {
			tpl.Category = category
		}
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
