// Package metrics exposes the gadget's Prometheus metrics on a private
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Directive results.
const (
	ResultHandled = "handled"
	ResultDropped = "dropped"
	ResultIgnored = "ignored"
)

// Metrics holds the gadget collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Directives counts directives by payload type and result.
	Directives *prometheus.CounterVec

	// Actuation records how long a move or deliver held the actuators.
	Actuation *prometheus.HistogramVec

	// MotorCommands counts motor commands by motor name.
	MotorCommands *prometheus.CounterVec

	// Companions is the number of connected companion links.
	Companions prometheus.Gauge

	// State is 1 for the current lifecycle state and 0 for the others.
	State *prometheus.GaugeVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Directives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablebot_directives_total",
				Help: "Control directives received, by payload type and result.",
			},
			[]string{"type", "result"},
		),
		Actuation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablebot_actuation_seconds",
				Help:    "Time spent actuating a command.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"kind"},
		),
		MotorCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablebot_motor_commands_total",
				Help: "Motor commands issued, by motor.",
			},
			[]string{"motor"},
		),
		Companions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tablebot_companions_connected",
				Help: "Number of connected companion links.",
			},
		),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tablebot_state",
				Help: "Gadget lifecycle state (1 = current).",
			},
			[]string{"state"},
		),
	}

	m.Registry.MustRegister(
		m.Directives,
		m.Actuation,
		m.MotorCommands,
		m.Companions,
		m.State,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Directive counts one directive.
func (m *Metrics) Directive(kind, result string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.Directives.WithLabelValues(kind, result).Inc()
}

// ObserveActuation records the duration of an actuation.
func (m *Metrics) ObserveActuation(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.Actuation.WithLabelValues(kind).Observe(d.Seconds())
}

// MotorCommand counts one motor command.
func (m *Metrics) MotorCommand(motor string) {
	if m == nil {
		return
	}
	m.MotorCommands.WithLabelValues(motor).Inc()
}

// SetCompanions sets the number of connected companions.
func (m *Metrics) SetCompanions(n int) {
	if m == nil {
		return
	}
	m.Companions.Set(float64(n))
}

// SetState marks current as the active state among states.
func (m *Metrics) SetState(current string, states []string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}
