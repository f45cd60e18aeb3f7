// Package metrics exposes engine counters to Prometheus.
//
// Every Metrics value owns its own registry so several engines (and tests) can
// run in one process. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "computegrid"

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	cycles             prometheus.Counter
	cycleDuration      prometheus.Histogram
	messagesApplied    *prometheus.CounterVec
	computesEvaluated  *prometheus.CounterVec
	deliveries         *prometheus.CounterVec
	pendingComputes    prometheus.Gauge
	commandsDispatched *prometheus.CounterVec
	commandsFailed     *prometheus.CounterVec
}

// New creates a Metrics with a fresh registry. When withRuntime is set the Go
// and process collectors are registered too.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of completed run cycles.",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of run cycles.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		messagesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_applied_total",
			Help:      "Queued update messages applied, by kind.",
		}, []string{"kind"}),
		computesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computes_evaluated_total",
			Help:      "Compute executions, by resulting stage.",
		}, []string{"stage"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Asynchronous deliveries, by outcome.",
		}, []string{"result"}),
		pendingComputes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_computes",
			Help:      "Computes waiting for a delivery at the end of the last cycle.",
		}),
		commandsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dispatched_total",
			Help:      "Dispatched commands, by mode.",
		}, []string{"mode"}),
		commandsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_failed_total",
			Help:      "Commands that returned an error or panicked, by name.",
		}, []string{"command"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CycleObserved records one finished cycle.
func (m *Metrics) CycleObserved(d time.Duration, pending int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.pendingComputes.Set(float64(pending))
}

// MessageApplied counts one applied queue message.
func (m *Metrics) MessageApplied(kind string) {
	if m == nil {
		return
	}
	m.messagesApplied.WithLabelValues(kind).Inc()
}

// ComputeEvaluated counts one compute execution.
func (m *Metrics) ComputeEvaluated(stage string) {
	if m == nil {
		return
	}
	m.computesEvaluated.WithLabelValues(stage).Inc()
}

// Delivery counts one delivery, accepted or dropped by the policy.
func (m *Metrics) Delivery(accepted bool) {
	if m == nil {
		return
	}
	result := "dropped"
	if accepted {
		result = "accepted"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

// CommandDispatched counts one dispatch.
func (m *Metrics) CommandDispatched(_, mode string) {
	if m == nil {
		return
	}
	m.commandsDispatched.WithLabelValues(mode).Inc()
}

// CommandFinished counts failed commands.
func (m *Metrics) CommandFinished(name string, err error) {
	if m == nil || err == nil {
		return
	}
	m.commandsFailed.WithLabelValues(name).Inc()
}
