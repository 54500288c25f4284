package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/listener"
	"github.com/noah-isme/sma-shift-api/internal/repository"
	"github.com/noah-isme/sma-shift-api/internal/service"
	"github.com/noah-isme/sma-shift-api/pkg/cache"
	"github.com/noah-isme/sma-shift-api/pkg/config"
	"github.com/noah-isme/sma-shift-api/pkg/database"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/jobs"
	"github.com/noah-isme/sma-shift-api/pkg/storage"
	"github.com/noah-isme/sma-shift-api/pkg/zonedtime"
)

// ReportDownloadPath is mounted under the API prefix.
const ReportDownloadPath = "/shift-templates/runs/reports"

// App holds every long-lived dependency of the service.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Migrator *database.Migrator
	Metrics  *service.MetricsService
	Cache    *service.CacheService
	Tokens   *service.TokenService
	Admins   *service.AdminService

	Templates    *service.ShiftTemplateService
	Materializer *service.ShiftMaterializerService
	Cleanup      *service.ShiftCleanupService
	Runner       *service.TemplateRunnerService
	Reports      *service.ReportService

	reportQueue *jobs.Queue
	daily       *jobs.Daily
	userEvents  *listener.UserEventListener
}

// New connects to Postgres and Redis and wires the service graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, DB: db, Redis: redisClient}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config
	logger := a.Logger

	migrator, err := database.NewMigrator(a.DB, logger)
	if err != nil {
		return err
	}
	a.Migrator = migrator

	clock := zonedtime.SystemClock{}
	validate := validator.New()
	tx := repository.NewTxRunner(a.DB)

	templateRepo := repository.NewShiftTemplateRepository(a.DB)
	shiftRepo := repository.NewTeachingShiftRepository(a.DB)
	userRepo := repository.NewUserRepository(a.DB)
	cacheRepo := repository.NewCacheRepository(a.Redis)

	a.Metrics = service.NewMetricsService()
	a.Cache = service.NewCacheService(cacheRepo, a.Metrics, cfg.Cache.SummaryTTL, logger, a.Redis != nil)
	a.Tokens = service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	a.Admins = service.NewAdminService(userRepo, a.Cache, cfg.Cache.AdminTTL, logger)

	conflicts := service.NewShiftConflictDetector(shiftRepo, logger)
	a.Materializer = service.NewShiftMaterializerService(shiftRepo, templateRepo, conflicts, tx, clock, a.Metrics, logger,
		service.MaterializerConfig{BatchSize: cfg.Templates.BatchSize})
	a.Cleanup = service.NewShiftCleanupService(shiftRepo, tx, a.Metrics, logger, cfg.Templates.BatchSize)
	a.Templates = service.NewShiftTemplateService(templateRepo, a.Materializer, a.Cleanup, a.Admins, tx, clock, validate, logger,
		service.ShiftTemplateConfig{
			DefaultMaxDaysAhead: cfg.Templates.DefaultMaxDaysAhead,
			BatchSize:           cfg.Templates.BatchSize,
		})

	var reporter service.RunReporter
	if cfg.Reports.Enabled {
		if err := a.wireReports(); err != nil {
			return err
		}
		reporter = a.Reports
	}
	a.Runner = service.NewTemplateRunnerService(templateRepo, a.Materializer, reporter, a.Cache, a.Metrics, clock, logger,
		service.TemplateRunnerConfig{Enabled: cfg.Templates.Enabled, SummaryTTL: cfg.Cache.SummaryTTL})

	if cfg.Templates.Enabled {
		hour, minute, err := parseRunAt(cfg.Templates.RunAt)
		if err != nil {
			return err
		}
		a.daily = jobs.NewDaily("shift-templates", a.runDaily, jobs.DailyConfig{
			Hour:       hour,
			Minute:     minute,
			Location:   zonedtime.Location(cfg.Templates.RunTimezone),
			RunOnStart: cfg.Templates.RunOnStart,
			Logger:     logger,
		})
	}

	if cfg.Events.Enabled {
		if a.Redis == nil {
			logger.Warn("user events enabled without redis; listener not started")
		} else {
			a.userEvents = listener.NewUserEventListener(a.Redis, cfg.Events.UserDeletedChannel, a.Templates, a.Admins, logger)
		}
	}
	return nil
}

func (a *App) wireReports() error {
	cfg := a.Config
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Reports.LinkTTL)
	a.Reports = service.NewReportService(nil, store, signer, a.Cache, a.Logger, service.ReportServiceConfig{
		Formats:      cfg.Reports.Formats,
		Retention:    cfg.Reports.Retention,
		SummaryTTL:   cfg.Cache.SummaryTTL,
		DownloadBase: strings.TrimRight(cfg.APIPrefix, "/") + ReportDownloadPath,
	})
	a.reportQueue = jobs.NewQueue("run-reports", a.Reports.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.QueueWorkers,
		MaxRetries: cfg.Reports.QueueRetries,
		RetryDelay: 5 * time.Second,
		Logger:     a.Logger,
		OnDeadLetter: func(job jobs.Job, _ error) {
			a.Metrics.RecordDeadJob("run-reports", job.Type)
		},
	})
	a.Reports.SetQueue(a.reportQueue)
	return nil
}

func (a *App) runDaily(ctx context.Context) error {
	_, err := a.Runner.RunDaily(ctx)
	if errors.Is(err, appErrors.ErrPreconditionFailed) {
		a.Logger.Info("template runner disabled; skipping scheduled run")
		return nil
	}
	return err
}

// Start launches the background workers: report queue, daily trigger and user event listener.
func (a *App) Start(ctx context.Context) {
	if a.reportQueue != nil {
		a.reportQueue.Start(ctx)
	}
	if a.daily != nil {
		a.daily.Start(ctx)
	}
	if a.userEvents != nil {
		go func() {
			if err := a.userEvents.Run(ctx); err != nil {
				a.Logger.Error("user event listener stopped", zap.Error(err))
			}
		}()
	}
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.daily != nil {
		a.daily.Stop()
	}
	if a.reportQueue != nil {
		a.reportQueue.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}

func parseRunAt(raw string) (int, int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, 0, nil
	}
	at, err := zonedtime.ParseLocalTime(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid TEMPLATES_RUN_AT: %w", err)
	}
	return at.Hour, at.Minute, nil
}
