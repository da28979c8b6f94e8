// Package metrics exposes Prometheus collectors for runs, steps and AI jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flowprobe"

// Prometheus metric names.
const (
	MetricRunsTotal           = "flowprobe_runs_total"
	MetricStepsTotal          = "flowprobe_steps_total"
	MetricStepDurationSeconds = "flowprobe_step_duration_seconds"
	MetricJobsTotal           = "flowprobe_jobs_total"
	MetricQueueDepth          = "flowprobe_queue_depth"
)

// Collector owns a private registry with the flowprobe metrics and the Go
// runtime collectors. A nil *Collector accepts every call and records nothing.
type Collector struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	stepsTotal   *prometheus.CounterVec
	stepDuration prometheus.Histogram
	jobsTotal    *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Execution runs that reached a terminal status.",
		}, []string{"status"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by status.",
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of executed steps.",
			Buckets:   prometheus.DefBuckets,
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "AI verification jobs that reached a terminal status.",
		}, []string{"status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "AI verification jobs waiting for the worker.",
		}),
	}

	c.registry.MustRegister(
		c.runsTotal,
		c.stepsTotal,
		c.stepDuration,
		c.jobsTotal,
		c.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RunFinished(status string) {
	if c == nil {
		return
	}

	c.runsTotal.WithLabelValues(status).Inc()
}

// StepRecorded counts a step. Zero durations (skipped steps) are not observed.
func (c *Collector) StepRecorded(status string, duration time.Duration) {
	if c == nil {
		return
	}

	c.stepsTotal.WithLabelValues(status).Inc()

	if duration > 0 {
		c.stepDuration.Observe(duration.Seconds())
	}
}

func (c *Collector) JobFinished(status string) {
	if c == nil {
		return
	}

	c.jobsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}

	c.queueDepth.Set(float64(n))
}
