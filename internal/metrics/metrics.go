// Package metrics records per-job Prometheus metrics and pushes them to a
// Pushgateway when the job ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the counters and gauges of one caption job. A nil *Metrics
// records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	segmentsTotal      prometheus.Counter
	fallbacksTotal     prometheus.Counter
	artifactsPublished *prometheus.CounterVec
	jobDurationSeconds prometheus.Gauge
	jobSuccess         prometheus.Gauge
}

// New creates and registers the job metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	segmentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "captionjob_segments_total",
		Help: "Total number of recognized segments",
	})
	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "captionjob_recognition_fallbacks_total",
		Help: "Total number of reduced-settings recognition retries",
	})
	artifactsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "captionjob_artifacts_published_total",
		Help: "Total number of caption documents published",
	}, []string{"language"})
	jobDurationSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "captionjob_job_duration_seconds",
		Help: "Wall-clock duration of the last job",
	})
	jobSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "captionjob_job_success",
		Help: "1 if the last job finished in Done, 0 otherwise",
	})

	registry.MustRegister(
		segmentsTotal,
		fallbacksTotal,
		artifactsPublished,
		jobDurationSeconds,
		jobSuccess,
	)

	return &Metrics{
		registry:           registry,
		segmentsTotal:      segmentsTotal,
		fallbacksTotal:     fallbacksTotal,
		artifactsPublished: artifactsPublished,
		jobDurationSeconds: jobDurationSeconds,
		jobSuccess:         jobSuccess,
	}
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddSegments adds n recognized segments.
func (m *Metrics) AddSegments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.segmentsTotal.Add(float64(n))
}

// IncFallbacks counts one reduced-settings retry.
func (m *Metrics) IncFallbacks() {
	if m == nil {
		return
	}
	m.fallbacksTotal.Inc()
}

// IncPublished counts one published document for a language.
func (m *Metrics) IncPublished(language string) {
	if m == nil {
		return
	}
	m.artifactsPublished.WithLabelValues(language).Inc()
}

// SetJobResult records how long the job took and whether it succeeded.
func (m *Metrics) SetJobResult(elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.jobDurationSeconds.Set(elapsed.Seconds())
	if ok {
		m.jobSuccess.Set(1)
	} else {
		m.jobSuccess.Set(0)
	}
}

// Push sends every metric to the Pushgateway at url, grouped by job id.
func (m *Metrics) Push(ctx context.Context, url, jobName, jobID string) error {
	if m == nil || url == "" {
		return nil
	}
	pusher := push.New(url, jobName).Gatherer(m.registry)
	if jobID != "" {
		pusher = pusher.Grouping("job_id", jobID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
