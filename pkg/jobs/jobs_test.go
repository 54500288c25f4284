package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue(Job{Type: "report"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{})
	assert.True(t, errors.Is(err, ErrQueueStopped))
}

func TestNextRun(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	beforeMidnight := time.Date(2024, time.March, 9, 23, 30, 0, 0, loc)
	next := NextRun(beforeMidnight, 0, 0, loc)
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, loc), next)

	exactly := time.Date(2024, time.March, 10, 6, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, time.March, 11, 6, 0, 0, 0, loc), NextRun(exactly, 6, 0, loc))

	utcNow := time.Date(2024, time.June, 1, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.June, 1, 5, 15, 0, 0, time.UTC), NextRun(utcNow, 5, 15, time.UTC))
}

func TestDailyRunsOnStartAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	d := NewDaily("test", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, DailyConfig{RunOnStart: true, Hour: 0, Minute: 0})

	d.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on start")
	}
	d.Stop()
	d.Stop()
}

func TestQueueDeadLettersPanickingJobs(t *testing.T) {
	dead := make(chan Job, 1)
	q := NewQueue("panics", func(context.Context, Job) error {
		panic("boom")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond, OnDeadLetter: func(job Job, err error) {
		assert.Contains(t, err.Error(), "boom")
		dead <- job
	}})

	q.Start(context.Background())
	defer q.Stop()
	_, err := q.Enqueue(Job{Type: "report"})
	require.NoError(t, err)

	select {
	case job := <-dead:
		assert.Equal(t, 2, job.Attempt)
		assert.Equal(t, "report", job.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached the dead letter hook")
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(time.Second, 0))
	assert.Equal(t, time.Second, Backoff(time.Second, 1))
	assert.Equal(t, 4*time.Second, Backoff(time.Second, 3))
	assert.Equal(t, 5*time.Minute, Backoff(time.Minute, 10))
}
