package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-shift-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and shift generation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	generationTotal *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
	runnerDuration  prometheus.Histogram
	runnerFailures  prometheus.Counter
	jobsDead        *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_generation_total",
		Help: "Days evaluated by the shift materializer, by outcome",
	}, []string{"outcome"})

	cleanupDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shift_cleanup_deleted_total",
		Help: "Generated shifts removed by cleanup sweeps",
	})

	runnerDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "template_runner_duration_seconds",
		Help:    "Duration of scheduled template runs",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	runnerFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "template_runner_failures_total",
		Help: "Templates that failed during scheduled runs",
	})

	jobsDead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_jobs_dead_total",
		Help: "Background jobs dropped after exhausting retries",
	}, []string{"queue", "type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		generationTotal, cleanupDeleted, runnerDuration, runnerFailures, jobsDead, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		generationTotal: generationTotal,
		cleanupDeleted:  cleanupDeleted,
		runnerDuration:  runnerDuration,
		runnerFailures:  runnerFailures,
		jobsDead:        jobsDead,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// RecordGeneration adds one materializer run's counters.
func (m *MetricsService) RecordGeneration(stats models.GenerationStats) {
	if m == nil {
		return
	}
	for outcome, n := range map[string]int{
		"created":                  stats.Created,
		"refreshed":                stats.Refreshed,
		"skipped_conflict":         stats.SkippedConflicts,
		"skipped_teacher_modified": stats.SkippedTeacherModified,
		"skipped_terminal_state":   stats.SkippedTerminalState,
		"skipped_not_started":      stats.SkippedNotStarted,
		"skipped_outside_end_date": stats.SkippedOutsideEndDate,
		"skipped_no_match":         stats.SkippedNoMatch,
	} {
		if n > 0 {
			m.generationTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

// RecordCleanup counts deleted shifts.
func (m *MetricsService) RecordCleanup(deleted int) {
	if m == nil || deleted <= 0 {
		return
	}
	m.cleanupDeleted.Add(float64(deleted))
}

// ObserveRun records a scheduled run's duration and failed template count.
func (m *MetricsService) ObserveRun(duration time.Duration, failures int) {
	if m == nil {
		return
	}
	m.runnerDuration.Observe(duration.Seconds())
	if failures > 0 {
		m.runnerFailures.Add(float64(failures))
	}
}

// RecordDeadJob counts a background job that will not be retried again.
func (m *MetricsService) RecordDeadJob(queue, jobType string) {
	if m == nil {
		return
	}
	m.jobsDead.WithLabelValues(queue, jobType).Inc()
}
