package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-shift-api/internal/dto"
	"github.com/noah-isme/sma-shift-api/internal/models"
)

type recordingBackend struct {
	migrated    bool
	caller      string
	templateID  string
	cleanup     *dto.CleanupRequest
	generateErr error
}

func (b *recordingBackend) Migrate(context.Context) error {
	b.migrated = true
	return nil
}

func (b *recordingBackend) RunDaily(context.Context) (*models.RunSummary, error) {
	return &models.RunSummary{RunID: "run-1", TotalTemplates: 2, TotalShiftsCreated: 5}, nil
}

func (b *recordingBackend) Generate(_ context.Context, callerID, id string) (*models.TemplateOperationResult, error) {
	b.caller, b.templateID = callerID, id
	if b.generateErr != nil {
		return nil, b.generateErr
	}
	return &models.TemplateOperationResult{TemplateID: id, Generated: &models.GenerationStats{Created: 3}}, nil
}

func (b *recordingBackend) Cleanup(_ context.Context, callerID string, req dto.CleanupRequest) (*models.CleanupResult, error) {
	b.caller = callerID
	b.cleanup = &req
	return &models.CleanupResult{Deleted: 4}, nil
}

func execute(t *testing.T, b *recordingBackend, args ...string) (string, time.Duration, error) {
	t.Helper()
	var gotTimeout time.Duration
	root := newRootCmd(func(cmd *cobra.Command, timeout time.Duration, fn func(context.Context, backend) error) error {
		gotTimeout = timeout
		return fn(context.Background(), b)
	})
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), gotTimeout, err
}

func TestGenerateRequiresAdmin(t *testing.T) {
	b := &recordingBackend{}
	_, _, err := execute(t, b, "generate", "tpl-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"as"`)
	assert.Empty(t, b.templateID)

	_, _, err = execute(t, b, "generate", "--as", "admin-1")
	require.Error(t, err)
	assert.Empty(t, b.templateID)
}

func TestGeneratePrintsResult(t *testing.T) {
	b := &recordingBackend{}
	out, timeout, err := execute(t, b, "generate", "tpl-1", "--as", "admin-1", "--timeout", "30s")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", b.caller)
	assert.Equal(t, "tpl-1", b.templateID)
	assert.Equal(t, 30*time.Second, timeout)
	assert.Contains(t, out, `"templateId": "tpl-1"`)
	assert.Contains(t, out, `"created": 3`)
}

func TestCleanupScopesToTemplate(t *testing.T) {
	b := &recordingBackend{}
	_, _, err := execute(t, b, "cleanup")
	require.Error(t, err)
	assert.Nil(t, b.cleanup)

	out, timeout, err := execute(t, b, "cleanup", "--as", "admin-1")
	require.NoError(t, err)
	require.NotNil(t, b.cleanup)
	assert.Nil(t, b.cleanup.TemplateID)
	assert.Equal(t, 10*time.Minute, timeout)
	assert.Contains(t, out, `"deleted": 4`)

	_, _, err = execute(t, b, "cleanup", "--as", "admin-2", "--template", "tpl-9")
	require.NoError(t, err)
	assert.Equal(t, "admin-2", b.caller)
	require.NotNil(t, b.cleanup.TemplateID)
	assert.Equal(t, "tpl-9", *b.cleanup.TemplateID)
}

func TestMigrateAndRunDaily(t *testing.T) {
	b := &recordingBackend{}
	_, _, err := execute(t, b, "migrate")
	require.NoError(t, err)
	assert.True(t, b.migrated)

	out, _, err := execute(t, b, "run-daily")
	require.NoError(t, err)
	assert.Contains(t, out, `"runId": "run-1"`)
	assert.Contains(t, out, `"totalShiftsCreated": 5`)
}
