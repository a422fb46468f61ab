// Package metrics holds the Prometheus collectors of the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lhbot"

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Inbound       *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	Published     *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	GamesFinished *prometheus.CounterVec
	PolicyLatency prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Messages received, by channel.",
		}, []string{"channel"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Inbound or outbound messages dropped, by reason.",
		}, []string{"reason"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_messages_total",
			Help:      "Messages published, by channel.",
		}, []string{"channel"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session phase changes, by target phase.",
		}, []string{"phase"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Sessions that reached Ended, by outcome.",
		}, []string{"outcome"}),
		PolicyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "policy_latency_seconds",
			Help:      "Time spent in the decision policy.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.Inbound, m.Dropped, m.Published, m.Transitions, m.GamesFinished, m.PolicyLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageIn counts an inbound message.
func (m *Metrics) MessageIn(channel string) {
	if m != nil {
		m.Inbound.WithLabelValues(channel).Inc()
	}
}

// Drop counts a dropped message.
func (m *Metrics) Drop(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

// MessageOut counts a published message.
func (m *Metrics) MessageOut(channel string) {
	if m != nil {
		m.Published.WithLabelValues(channel).Inc()
	}
}

// Transition counts a phase change.
func (m *Metrics) Transition(phase string) {
	if m != nil {
		m.Transitions.WithLabelValues(phase).Inc()
	}
}

// GameFinished counts an ended session.
func (m *Metrics) GameFinished(outcome string) {
	if m != nil {
		m.GamesFinished.WithLabelValues(outcome).Inc()
	}
}

// ObservePolicy records the duration of one policy call.
func (m *Metrics) ObservePolicy(d time.Duration) {
	if m != nil {
		m.PolicyLatency.Observe(d.Seconds())
	}
}
