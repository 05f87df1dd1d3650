// Package metrics provides the observability surface: a Prometheus
// recorder on a private registry and an OpenTelemetry tracer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"castforge/internal/support/logger"
)

// Recorder is the domain-level metrics interface consumed by the
// orchestrator and the upstream invoker.
type Recorder interface {
	// RecordJobStatus counts a job reaching the given state.
	RecordJobStatus(state string)
	// RecordJobDuration records the total wall time of a finished job.
	RecordJobDuration(state string, d time.Duration)
	// RecordArtifact counts a completed artifact by unit kind.
	RecordArtifact(kind string)
	// RecordUnitFailure counts a unit that exhausted its retries.
	RecordUnitFailure(kind string)
	// RecordSplitFallback counts a series response split by even line
	// count because the episode markers were missing.
	RecordSplitFallback()
	// RecordRateLimited counts an upstream rate-limit signal.
	RecordRateLimited()
	// RecordRetry counts one upstream retry attempt.
	RecordRetry()
	// ObserveCall records the duration and outcome of one upstream call.
	ObserveCall(model string, d time.Duration, success bool)
}

// PrometheusRecorder is a Prometheus implementation of the Recorder
// interface on a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobStatusCounter   *prometheus.CounterVec
	jobDurationSeconds *prometheus.HistogramVec

	artifactCounter     *prometheus.CounterVec
	unitFailureCounter  *prometheus.CounterVec
	splitFallbackTotal  prometheus.Counter
	rateLimitedTotal    prometheus.Counter
	retryTotal          prometheus.Counter
	callDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castforge_job_status_total",
			Help: "Total number of generation jobs by terminal or entered state.",
		}, []string{"state"}),
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "castforge_job_duration_seconds",
			Help:    "Wall time of finished generation jobs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"state"}),
		artifactCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castforge_artifacts_total",
			Help: "Total completed artifacts by unit kind.",
		}, []string{"kind"}),
		unitFailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castforge_unit_failures_total",
			Help: "Total generation units that exhausted their retries.",
		}, []string{"kind"}),
		splitFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castforge_series_split_fallback_total",
			Help: "Total series responses split by line count because episode markers were missing.",
		}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castforge_upstream_rate_limited_total",
			Help: "Total upstream calls rejected with a rate-limit signal.",
		}),
		retryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castforge_upstream_retries_total",
			Help: "Total upstream retry attempts.",
		}),
		callDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "castforge_upstream_call_duration_seconds",
			Help:    "Duration of upstream generation calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model", "outcome"}),
	}

	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.artifactCounter)
	registry.MustRegister(r.unitFailureCounter)
	registry.MustRegister(r.splitFallbackTotal)
	registry.MustRegister(r.rateLimitedTotal)
	registry.MustRegister(r.retryTotal)
	registry.MustRegister(r.callDurationSeconds)

	return r
}

// GetRegistry returns the private Prometheus registry for the /metrics
// handler.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordJobStatus(state string) {
	r.jobStatusCounter.WithLabelValues(state).Inc()
}

func (r *PrometheusRecorder) RecordJobDuration(state string, d time.Duration) {
	r.jobDurationSeconds.WithLabelValues(state).Observe(d.Seconds())
	logger.Debugf("Metrics: job finished as %s after %.3fs.", state, d.Seconds())
}

func (r *PrometheusRecorder) RecordArtifact(kind string) {
	r.artifactCounter.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordUnitFailure(kind string) {
	r.unitFailureCounter.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordSplitFallback() {
	r.splitFallbackTotal.Inc()
}

func (r *PrometheusRecorder) RecordRateLimited() {
	r.rateLimitedTotal.Inc()
}

func (r *PrometheusRecorder) RecordRetry() {
	r.retryTotal.Inc()
}

func (r *PrometheusRecorder) ObserveCall(model string, d time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.callDurationSeconds.WithLabelValues(model, outcome).Observe(d.Seconds())
}

var _ Recorder = (*PrometheusRecorder)(nil)
