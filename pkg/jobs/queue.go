package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueStopped is returned by Enqueue once the queue is not accepting work.
var ErrQueueStopped = errors.New("queue stopped")

const maxBackoff = 5 * time.Minute

// Job is a unit of background work. Attempt counts failed executions so far.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures the worker pool. RetryDelay is the first backoff step;
// later attempts double it up to five minutes.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnDeadLetter is invoked once a job has exhausted its retries.
	OnDeadLetter func(Job, error)
}

// Queue dispatches jobs to a fixed set of goroutines and retries failures with backoff.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger
	backlog chan Job

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue builds a queue; it accepts work only after Start.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	cfg.MaxRetries = max(cfg.MaxRetries, 0)
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("queue", name)),
		backlog: make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Subsequent calls are ignored until Stop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	q.wg.Add(q.cfg.Workers)
	for n := 0; n < q.cfg.Workers; n++ {
		go q.consume()
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels in-flight work and pending retries, then waits for the workers.
// Jobs still buffered are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.backlog)))
}

// Pending reports how many jobs are buffered and not yet picked up.
func (q *Queue) Pending() int {
	return len(q.backlog)
}

// Enqueue buffers a job, assigning an ID and enqueue time when missing.
// It blocks while the buffer is full.
func (q *Queue) Enqueue(job Job) (string, error) {
	q.mu.Lock()
	running, ctx := q.running, q.ctx
	q.mu.Unlock()
	if !running {
		return "", fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.backlog <- job:
		return job.ID, nil
	case <-ctx.Done():
		return "", fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	}
}

func (q *Queue) consume() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.backlog:
			if err := q.execute(job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

func (q *Queue) execute(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	log := q.logger.With(
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(cause),
	)
	if q.ctx.Err() != nil {
		log.Debug("job failed during shutdown")
		return
	}
	if job.Attempt > q.cfg.MaxRetries {
		log.Error("job exhausted retries")
		if q.cfg.OnDeadLetter != nil {
			q.cfg.OnDeadLetter(job, cause)
		}
		return
	}

	wait := Backoff(q.cfg.RetryDelay, job.Attempt)
	log.Warn("job failed; retry scheduled", zap.Duration("backoff", wait))

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if _, err := q.Enqueue(job); err != nil {
				log.Error("requeue failed", zap.NamedError("requeue_error", err))
			}
		}
	}()
}

// Backoff returns base doubled for every attempt after the first, capped at five minutes.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
