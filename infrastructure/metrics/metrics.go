// Package metrics exposes sweep and optimizer metrics for Prometheus.
package metrics

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "linefit"

// Collector provides sweep metrics collection on its own registry.
type Collector struct {
	registry *prometheus.Registry

	JobsTotal        *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	AnnealIterations prometheus.Counter
	BestChiSquare    prometheus.Gauge

	mu   sync.Mutex
	best float64
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "jobs_total",
				Help:      "Total number of sweep jobs run by operation",
			},
			[]string{"operation"},
		),

		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "jobs_failed_total",
				Help:      "Total number of failed sweep jobs by operation",
			},
			[]string{"operation"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "job_duration_seconds",
				Help:      "Sweep job duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"operation"},
		),

		AnnealIterations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "anneal_iterations_total",
				Help:      "Total number of annealing iterations across all jobs",
			},
		),

		BestChiSquare: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "best_chi_square",
				Help:      "Lowest chi-square reported since the last reset",
			},
		),

		best: math.Inf(1),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveJob records one finished job.
func (c *Collector) ObserveJob(operation string, duration time.Duration, err error) {
	c.JobsTotal.WithLabelValues(operation).Inc()
	c.JobDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		c.JobsFailed.WithLabelValues(operation).Inc()
	}
}

// AddIterations adds optimizer iterations.
func (c *Collector) AddIterations(n int) {
	if n > 0 {
		c.AnnealIterations.Add(float64(n))
	}
}

// ObserveChiSquare lowers the best chi-square gauge when v improves on it.
func (c *Collector) ObserveChiSquare(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v < c.best {
		c.best = v
		c.BestChiSquare.Set(v)
	}
}

// Best returns the lowest chi-square observed since the last reset.
func (c *Collector) Best() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.best
}

// ResetBest forgets the best chi-square, typically at the start of a sweep.
func (c *Collector) ResetBest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.best = math.Inf(1)
	c.BestChiSquare.Set(0)
}
