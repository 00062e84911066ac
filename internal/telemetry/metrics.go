// Package telemetry exports engine activity as Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

const namespace = "carbonq"

// Metrics holds the collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	decisions    *prometheus.CounterVec
	energy       *prometheus.CounterVec
	carbonGrams  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	intensity    *prometheus.GaugeVec
	queueDepth   prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Policy decisions by selected strategy, urgency and whether the query was deferred.",
		}, []string{"strategy", "urgency", "deferred"}),
		energy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_energy_joules_total",
			Help:      "Measured energy of completed executions.",
		}, []string{"strategy"}),
		carbonGrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carbon_grams_total",
			Help:      "Emissions attributed to completed executions, in grams of CO2.",
		}, []string{"strategy"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Histogram of execution durations by strategy.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),
		intensity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "carbon_intensity_gco2_per_kwh",
			Help:      "Most recent grid carbon intensity by signal source.",
		}, []string{"source"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deferred_queue_depth",
			Help:      "Requests waiting in the deferred queue.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.decisions,
		m.energy,
		m.carbonGrams,
		m.duration,
		m.intensity,
		m.queueDepth,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCarbon records the latest intensity for its source.
func (m *Metrics) ObserveCarbon(r domain.CarbonReading) {
	if m == nil {
		return
	}
	m.intensity.WithLabelValues(string(r.Source)).Set(r.Value)
}

// ObserveDecision counts a policy decision.
func (m *Metrics) ObserveDecision(urgency domain.Urgency, d domain.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(d.Strategy.String(), urgency.String(), strconv.FormatBool(d.ShouldDefer)).Inc()
}

// ObserveExecution records the measured cost of a run.
func (m *Metrics) ObserveExecution(s domain.Strategy, metrics domain.ExecutionMetrics, intensity float64) {
	if m == nil {
		return
	}
	label := s.String()
	m.energy.WithLabelValues(label).Add(metrics.EnergyJoules)
	m.carbonGrams.WithLabelValues(label).Add(metrics.CarbonGrams(intensity))
	m.duration.WithLabelValues(label).Observe(metrics.Duration.Seconds())
}

// SetQueueDepth records the deferred queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
