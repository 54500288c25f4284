package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-shift-api/internal/models"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
	"github.com/noah-isme/sma-shift-api/pkg/jobs"
	"github.com/noah-isme/sma-shift-api/pkg/storage"
)

type capturingQueue struct {
	jobs []jobs.Job
}

func (q *capturingQueue) Enqueue(job jobs.Job) (string, error) {
	q.jobs = append(q.jobs, job)
	return job.ID, nil
}

func sampleRunSummary() models.RunSummary {
	return models.RunSummary{
		RunID:              "run-1",
		TotalTemplates:     3,
		TotalShiftsCreated: 5,
		FailedTemplates:    []string{"tplC"},
		TeachersAffected: []models.TeacherRunSummary{
			{TeacherID: "t1", Name: "Ada", ShiftsCreated: 3},
			{TeacherID: "t2", Name: "Grace", ShiftsCreated: 2},
		},
		RunDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	}
}

func TestReportServiceQueuesAndRenders(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	queue := &capturingQueue{}
	svc := NewReportService(queue, store, signer, nil, nil, ReportServiceConfig{
		Formats:      []string{"csv", "pdf"},
		DownloadBase: "/api/v1/shift-templates/runs/reports/",
	})

	require.NoError(t, svc.Report(context.Background(), sampleRunSummary()))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, RunReportJobType, queue.jobs[0].Type)
	require.NoError(t, svc.Handle(context.Background(), queue.jobs[0]))

	files, err := svc.Render(sampleRunSummary())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "2024-03-04/run-1.csv", files[0].Path)
	assert.True(t, strings.HasPrefix(files[0].DownloadURL, "/api/v1/shift-templates/runs/reports/"))
	require.NotNil(t, files[0].ExpiresAt)

	token := strings.TrimPrefix(files[0].DownloadURL, "/api/v1/shift-templates/runs/reports/")
	download, err := svc.ResolveDownload(token)
	require.NoError(t, err)
	defer download.File.Close()
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "run-1.csv", download.Filename)
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Equal(t, "teacher,teacher_id,shifts_created\nAda,t1,3\nGrace,t2,2\nTOTAL,\"3 templates, 1 failed\",5\n", string(body))
}

func TestReportServiceRejectsBadTokens(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewReportService(&capturingQueue{}, store, storage.NewSignedURLSigner("secret", time.Hour), nil, nil, ReportServiceConfig{})

	_, err = svc.ResolveDownload("run-1.123.abc.deadbeef")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReportServiceIgnoresForeignPayloads(t *testing.T) {
	svc := NewReportService(&capturingQueue{}, nil, nil, nil, nil, ReportServiceConfig{})
	assert.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: "x", Payload: "not a summary"}))
}
