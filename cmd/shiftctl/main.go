package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/app"
	"github.com/noah-isme/sma-shift-api/internal/dto"
	"github.com/noah-isme/sma-shift-api/internal/models"
	"github.com/noah-isme/sma-shift-api/pkg/config"
	"github.com/noah-isme/sma-shift-api/pkg/jobs"
	"github.com/noah-isme/sma-shift-api/pkg/logger"
)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openApp connects the full service graph for one command and closes it afterwards.
func openApp(cmd *cobra.Command, timeout time.Duration, fn func(context.Context, backend) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, appBackend{a}); err != nil {
		logr.Error("command failed", zap.String("command", cmd.Name()), zap.Error(err))
		return err
	}
	return nil
}

type appBackend struct {
	app *app.App
}

func (b appBackend) Migrate(ctx context.Context) error {
	return b.app.Migrator.Up(ctx)
}

func (b appBackend) RunDaily(ctx context.Context) (*models.RunSummary, error) {
	if b.app.Reports != nil {
		b.app.Reports.SetQueue(inlineDispatcher{ctx: ctx, handle: b.app.Reports.Handle})
	}
	return b.app.Runner.RunDaily(ctx)
}

func (b appBackend) Generate(ctx context.Context, callerID, id string) (*models.TemplateOperationResult, error) {
	return b.app.Templates.Generate(ctx, callerID, id)
}

func (b appBackend) Cleanup(ctx context.Context, callerID string, req dto.CleanupRequest) (*models.CleanupResult, error) {
	return b.app.Templates.Cleanup(ctx, callerID, req)
}

// inlineDispatcher renders reports on the caller's goroutine so a one-shot run finishes its exports before exit.
type inlineDispatcher struct {
	ctx    context.Context
	handle jobs.Handler
}

func (d inlineDispatcher) Enqueue(job jobs.Job) (string, error) {
	return job.ID, d.handle(d.ctx, job)
}
