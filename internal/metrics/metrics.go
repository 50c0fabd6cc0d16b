// Package metrics provides runtime metrics collection.
// It wraps Prometheus collectors to provide structured telemetry for domain
// lifecycle, tick latency, and worker activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Domain status values reported by the status gauge.
const (
	StatusUninitialized = 0
	StatusInitialized   = 1
	StatusRunning       = 2
	StatusStopped       = 3
	StatusFailed        = 4
)

// Collector provides domain runtime metrics collection.
type Collector struct {
	registry *prometheus.Registry

	domainStatus *prometheus.GaugeVec
	tickLatency  *prometheus.HistogramVec
	tickTotal    *prometheus.CounterVec
	tickFailures *prometheus.CounterVec
	initFailures *prometheus.CounterVec
	timeDelta    *prometheus.GaugeVec
	uptime       prometheus.Gauge

	startTime time.Time
}

// NewCollector creates a collector with its own Prometheus registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "pulsekit"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.domainStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "domain",
			Name:      "status",
			Help:      "Current status of the domain (0=uninitialized, 1=initialized, 2=running, 3=stopped, 4=failed)",
		},
		[]string{"domain"},
	)

	c.tickLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "domain",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one tick pass",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5},
		},
		[]string{"domain"},
	)

	c.tickTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "domain",
			Name:      "ticks_total",
			Help:      "Total number of tick passes",
		},
		[]string{"domain"},
	)

	c.tickFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "domain",
			Name:      "tick_failures_total",
			Help:      "Total number of failed tick passes",
		},
		[]string{"domain"},
	)

	c.initFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "domain",
			Name:      "init_failures_total",
			Help:      "Total number of failed initializations",
		},
		[]string{"domain"},
	)

	c.timeDelta = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "domain",
			Name:      "time_delta_seconds",
			Help:      "Last measured step duration of the domain",
		},
		[]string{"domain"},
	)

	c.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the collector was created",
	})

	c.registry.MustRegister(
		c.domainStatus,
		c.tickLatency,
		c.tickTotal,
		c.tickFailures,
		c.initFailures,
		c.timeDelta,
		c.uptime,
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetStatus records the lifecycle status of a domain.
func (c *Collector) SetStatus(domain string, status float64) {
	c.domainStatus.WithLabelValues(domain).Set(status)
	c.uptime.Set(time.Since(c.startTime).Seconds())
}

// ObserveTick records one tick pass of a domain.
func (c *Collector) ObserveTick(domain string, d time.Duration, err error) {
	c.tickTotal.WithLabelValues(domain).Inc()
	c.tickLatency.WithLabelValues(domain).Observe(d.Seconds())
	if err != nil {
		c.tickFailures.WithLabelValues(domain).Inc()
	}
}

// ObserveInitFailure records a failed initialization of a domain.
func (c *Collector) ObserveInitFailure(domain string) {
	c.initFailures.WithLabelValues(domain).Inc()
}

// SetTimeDelta records the last measured step duration of a domain.
func (c *Collector) SetTimeDelta(domain string, seconds float64) {
	c.timeDelta.WithLabelValues(domain).Set(seconds)
}
