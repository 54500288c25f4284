package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/zonedtime"
)

// LastRunCacheKey stores the most recent RunSummary.
const LastRunCacheKey = "shift_templates:last_run"

type activeTemplateLister interface {
	ListActive(ctx context.Context) ([]models.ShiftTemplate, error)
}

// RunReporter receives the summary of every completed scheduled run.
type RunReporter interface {
	Report(ctx context.Context, summary models.RunSummary) error
}

// TemplateRunnerConfig toggles and tunes the daily sweep.
type TemplateRunnerConfig struct {
	Enabled    bool
	SummaryTTL time.Duration
}

// TemplateRunnerService materializes every active template once per scheduled run.
type TemplateRunnerService struct {
	templates activeTemplateLister
	generator shiftGenerator
	reporter  RunReporter
	cache     *CacheService
	metrics   *MetricsService
	clock     zonedtime.Clock
	logger    *zap.Logger
	cfg       TemplateRunnerConfig
}

// NewTemplateRunnerService wires runner dependencies. A nil reporter only logs summaries.
func NewTemplateRunnerService(
	templates activeTemplateLister,
	generator shiftGenerator,
	reporter RunReporter,
	cache *CacheService,
	metrics *MetricsService,
	clock zonedtime.Clock,
	logger *zap.Logger,
	cfg TemplateRunnerConfig,
) *TemplateRunnerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = zonedtime.SystemClock{}
	}
	if reporter == nil {
		reporter = NewLogRunReporter(logger)
	}
	return &TemplateRunnerService{
		templates: templates,
		generator: generator,
		reporter:  reporter,
		cache:     cache,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// RunDaily generates shifts for all active templates. A failing template is logged, listed in
// FailedTemplates and does not stop the run. Returns ErrPreconditionFailed when templates are disabled.
func (s *TemplateRunnerService) RunDaily(ctx context.Context) (*models.RunSummary, error) {
	if !s.cfg.Enabled {
		s.logger.Info("template materialization disabled, skipping daily run")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "template materialization disabled")
	}

	started := time.Now()
	templates, err := s.templates.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active templates")
	}

	summary := models.RunSummary{
		RunID:            uuid.NewString(),
		TotalTemplates:   len(templates),
		FailedTemplates:  []string{},
		TeachersAffected: []models.TeacherRunSummary{},
		RunDate:          s.clock.Now().UTC(),
	}
	perTeacher := make(map[string]*models.TeacherRunSummary)

	for i := range templates {
		tpl := &templates[i]
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stats, err := s.generator.Generate(ctx, tpl.ID, tpl)
		if err != nil {
			s.logger.Error("template generation failed",
				zap.String("run_id", summary.RunID), zap.String("template_id", tpl.ID), zap.Error(err))
			summary.FailedTemplates = append(summary.FailedTemplates, tpl.ID)
			continue
		}
		summary.TotalShiftsCreated += stats.Created
		summary.TotalSkipped += stats.Skipped()

		if stats.Created == 0 {
			continue
		}
		entry, ok := perTeacher[tpl.TeacherID]
		if !ok {
			name := tpl.TeacherName
			if name == "" {
				name = tpl.TeacherID
			}
			entry = &models.TeacherRunSummary{TeacherID: tpl.TeacherID, Name: name}
			perTeacher[tpl.TeacherID] = entry
		}
		entry.ShiftsCreated += stats.Created
	}

	for _, entry := range perTeacher {
		summary.TeachersAffected = append(summary.TeachersAffected, *entry)
	}
	sort.Slice(summary.TeachersAffected, func(i, j int) bool {
		a, b := summary.TeachersAffected[i], summary.TeachersAffected[j]
		if a.ShiftsCreated != b.ShiftsCreated {
			return a.ShiftsCreated > b.ShiftsCreated
		}
		return a.Name < b.Name
	})

	s.metrics.ObserveRun(time.Since(started), len(summary.FailedTemplates))
	s.cache.Set(ctx, LastRunCacheKey, summary, s.cfg.SummaryTTL)

	s.logger.Info("daily template run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("templates", summary.TotalTemplates),
		zap.Int("created", summary.TotalShiftsCreated),
		zap.Int("skipped", summary.TotalSkipped),
		zap.Int("failed", len(summary.FailedTemplates)),
		zap.Duration("elapsed", time.Since(started)))

	if err := s.reporter.Report(ctx, summary); err != nil {
		s.logger.Warn("run report delivery failed", zap.String("run_id", summary.RunID), zap.Error(err))
	}
	return &summary, nil
}

// LatestRun returns the cached summary of the last run.
func (s *TemplateRunnerService) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	var summary models.RunSummary
	if !s.cache.Get(ctx, LastRunCacheKey, &summary) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no template run recorded")
	}
	return &summary, nil
}

// LogRunReporter writes run summaries to the log.
type LogRunReporter struct {
	logger *zap.Logger
}

// NewLogRunReporter constructs a LogRunReporter.
func NewLogRunReporter(logger *zap.Logger) *LogRunReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRunReporter{logger: logger}
}

// Report logs the per-teacher breakdown.
func (r *LogRunReporter) Report(_ context.Context, summary models.RunSummary) error {
	r.logger.Info("run summary",
		zap.String("run_id", summary.RunID),
		zap.Time("run_date", summary.RunDate),
		zap.Any("teachers_affected", summary.TeachersAffected),
		zap.Strings("failed_templates", summary.FailedTemplates))
	return nil
}
