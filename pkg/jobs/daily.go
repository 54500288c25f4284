package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is invoked by Daily at each trigger.
type Task func(ctx context.Context) error

// DailyConfig configures the wall-clock trigger.
type DailyConfig struct {
	Hour       int
	Minute     int
	Location   *time.Location
	RunOnStart bool
	Logger     *zap.Logger
}

// Daily fires a task once per calendar day at a fixed wall-clock time.
type Daily struct {
	name string
	task Task
	cfg  DailyConfig

	now    func() time.Time
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDaily builds a trigger for task.
func NewDaily(name string, task Task, cfg DailyConfig) *Daily {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.Logger = cfg.Logger.With(zap.String("trigger", name))
	return &Daily{name: name, task: task, cfg: cfg, now: time.Now}
}

// NextRun returns the first instant strictly after now that reads hour:minute in loc.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start launches the trigger loop in the background.
func (d *Daily) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.loop(runCtx)
}

// Stop cancels the loop and waits for an in-flight task to return.
func (d *Daily) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	d.cfg.Logger.Info("daily trigger stopped")
}

func (d *Daily) loop(ctx context.Context) {
	defer close(d.done)

	if d.cfg.RunOnStart {
		d.fire(ctx)
	}

	for {
		next := NextRun(d.now(), d.cfg.Hour, d.cfg.Minute, d.cfg.Location)
		d.cfg.Logger.Info("daily trigger scheduled", zap.Time("next_run", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.fire(ctx)
		}
	}
}

func (d *Daily) fire(ctx context.Context) {
	start := time.Now()
	if err := d.task(ctx); err != nil {
		d.cfg.Logger.Error("daily task failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	d.cfg.Logger.Info("daily task completed", zap.Duration("elapsed", time.Since(start)))
}
