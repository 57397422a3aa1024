package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each server owns its own
// registry so multiple servers can coexist in one process (tests rely on
// this).
type Metrics struct {
	registry *prometheus.Registry

	activeSessions prometheus.Gauge
	loginsTotal    *prometheus.CounterVec
	lockoutsTotal  prometheus.Counter
	commandsTotal  *prometheus.CounterVec
	deliveredTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatwire_active_sessions",
			Help: "Number of currently connected sessions.",
		}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		lockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatwire_lockouts_total",
			Help: "Connection identities locked out after repeated failures.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_commands_total",
			Help: "Commands dispatched by action.",
		}, []string{"action"}),
		deliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_messages_delivered_total",
			Help: "Messages delivered to session outbound paths, by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.activeSessions,
		m.loginsTotal,
		m.lockoutsTotal,
		m.commandsTotal,
		m.deliveredTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this server's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordLogin(success bool) {
	if success {
		m.loginsTotal.WithLabelValues("success").Inc()
	} else {
		m.loginsTotal.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) RecordLockout() {
	m.lockoutsTotal.Inc()
}

func (m *Metrics) RecordCommand(action string) {
	m.commandsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordDelivery(kind string, n int) {
	m.deliveredTotal.WithLabelValues(kind).Add(float64(n))
}
