package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/export"
	"github.com/noah-isme/sma-shift-api/pkg/jobs"
)

// RunReportJobType tags queued report renders.
const RunReportJobType = "run_report"

type jobDispatcher interface {
	Enqueue(job jobs.Job) (string, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(owner, relPath string) (string, time.Time, error)
	Parse(token string) (owner, relPath string, err error)
}

// ReportServiceConfig governs rendered run summaries.
type ReportServiceConfig struct {
	Formats      []string
	Retention    time.Duration
	SummaryTTL   time.Duration
	DownloadBase string
}

// ReportDownload is an opened report file ready to stream.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ReportService renders run summaries to files on a background queue and serves them by signed token.
type ReportService struct {
	queue   jobDispatcher
	storage fileStorage
	signer  downloadSigner
	cache   *CacheService
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// NewReportService constructs the report service. The queue may be attached later with SetQueue.
func NewReportService(queue jobDispatcher, storage fileStorage, signer downloadSigner, cache *CacheService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []string{"csv"}
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &ReportService{queue: queue, storage: storage, signer: signer, cache: cache, logger: logger, cfg: cfg}
}

// SetQueue attaches the dispatcher whose handler is this service's Handle.
func (s *ReportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Report enqueues rendering of summary.
func (s *ReportService) Report(_ context.Context, summary models.RunSummary) error {
	if s.queue == nil {
		return fmt.Errorf("report queue not configured")
	}
	id, err := s.queue.Enqueue(jobs.Job{ID: summary.RunID, Type: RunReportJobType, Payload: summary})
	if err != nil {
		return fmt.Errorf("enqueue run report: %w", err)
	}
	s.logger.Debug("run report queued", zap.String("job_id", id))
	return nil
}

// Handle is the queue handler: render, store, publish links and prune old files.
func (s *ReportService) Handle(ctx context.Context, job jobs.Job) error {
	summary, ok := job.Payload.(models.RunSummary)
	if !ok {
		s.logger.Error("unexpected run report payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}

	files, err := s.Render(summary)
	if err != nil {
		return err
	}
	summary.Reports = files

	var cached models.RunSummary
	if s.cache.Get(ctx, LastRunCacheKey, &cached) && cached.RunID == summary.RunID {
		s.cache.Set(ctx, LastRunCacheKey, summary, s.cfg.SummaryTTL)
	}

	if removed, err := s.storage.CleanupOlderThan(s.cfg.Retention); err != nil {
		s.logger.Warn("run report retention sweep failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("expired run reports removed", zap.Int("files", len(removed)))
	}
	return nil
}

// Render writes one file per configured format and returns signed download links.
func (s *ReportService) Render(summary models.RunSummary) ([]models.RunReportFile, error) {
	dataset := runSummaryDataset(summary)
	day := summary.RunDate.UTC().Format("2006-01-02")

	files := make([]models.RunReportFile, 0, len(s.cfg.Formats))
	for _, format := range s.cfg.Formats {
		renderer, err := export.ForFormat(strings.ToLower(strings.TrimSpace(format)))
		if err != nil {
			return nil, err
		}
		body, err := renderer.Render(dataset)
		if err != nil {
			return nil, fmt.Errorf("render %s run report: %w", renderer.Format(), err)
		}
		name := path.Join(day, summary.RunID+"."+renderer.Format())
		saved, err := s.storage.Save(name, body)
		if err != nil {
			return nil, err
		}

		file := models.RunReportFile{Format: renderer.Format(), Path: saved}
		if s.signer != nil {
			token, expiresAt, err := s.signer.Generate(summary.RunID, saved)
			if err != nil {
				return nil, fmt.Errorf("sign run report: %w", err)
			}
			file.DownloadURL = strings.TrimRight(s.cfg.DownloadBase, "/") + "/" + token
			file.ExpiresAt = &expiresAt
		}
		files = append(files, file)
	}
	return files, nil
}

// ResolveDownload validates token and opens the referenced file.
func (s *ReportService) ResolveDownload(token string) (*ReportDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run reports disabled")
	}
	_, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	renderer, err := export.ForFormat(strings.TrimPrefix(filepath.Ext(relPath), "."))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown report format")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report file expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &ReportDownload{File: file, Filename: filepath.Base(relPath), ContentType: renderer.ContentType()}, nil
}

func runSummaryDataset(summary models.RunSummary) export.Dataset {
	rows := make([]map[string]string, 0, len(summary.TeachersAffected)+1)
	for _, t := range summary.TeachersAffected {
		rows = append(rows, map[string]string{
			"teacher":        t.Name,
			"teacher_id":     t.TeacherID,
			"shifts_created": strconv.Itoa(t.ShiftsCreated),
		})
	}
	rows = append(rows, map[string]string{
		"teacher":        "TOTAL",
		"teacher_id":     fmt.Sprintf("%d templates, %d failed", summary.TotalTemplates, len(summary.FailedTemplates)),
		"shifts_created": strconv.Itoa(summary.TotalShiftsCreated),
	})
	return export.Dataset{
		Title:   "Shift template run " + summary.RunDate.UTC().Format(time.RFC3339),
		Headers: []string{"teacher", "teacher_id", "shifts_created"},
		Rows:    rows,
	}
}
