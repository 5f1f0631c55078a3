// Package metrics wires github.com/prometheus/client_golang for the
// counters and gauges SPEC_FULL.md §2.6 names. It deliberately builds
// its own prometheus.Registry rather than registering against the
// global DefaultRegisterer, so a Metrics value stays embeddable and
// test-safe (two instances in the same test binary don't collide),
// grounded on the teacher's cmd/proxysip/main.go httpServer which
// wires promhttp.Handler onto its own mux.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every named series SPEC_FULL.md §2.6 lists.
type Metrics struct {
	Registry *prometheus.Registry

	DatagramsReceived *prometheus.CounterVec
	DatagramsDropped  *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	QueueDropped      *prometheus.CounterVec
	CallsActive       *prometheus.GaugeVec
	DialogsActive     *prometheus.GaugeVec
	TransactionsActive *prometheus.GaugeVec
	ResponsesSent     *prometheus.CounterVec
}

// New builds a fresh registry and registers every series on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		DatagramsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sip_datagrams_received_total",
			Help: "UDP datagrams read by the dispatcher.",
		}, nil),
		DatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sip_datagrams_dropped_total",
			Help: "Datagrams dropped by the dispatcher, by reason.",
		}, []string{"reason"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sip_queue_depth",
			Help: "Current depth of a worker's bounded queue.",
		}, []string{"worker"}),
		QueueDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sip_queue_dropped_total",
			Help: "Messages dropped because a worker's queue was full.",
		}, []string{"worker"}),
		CallsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sip_calls_active",
			Help: "Live calls in a worker's registry.",
		}, []string{"worker"}),
		DialogsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sip_dialogs_active",
			Help: "Live dialogs in a worker's registry.",
		}, []string{"worker"}),
		TransactionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sip_transactions_active",
			Help: "Live transactions in a worker's registry.",
		}, []string{"worker"}),
		ResponsesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sip_responses_sent_total",
			Help: "Responses sent, by status code.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.DatagramsReceived,
		m.DatagramsDropped,
		m.QueueDepth,
		m.QueueDropped,
		m.CallsActive,
		m.DialogsActive,
		m.TransactionsActive,
		m.ResponsesSent,
	)
	return m
}

// Handler exposes the registry in the Prometheus text exposition
// format, suitable for mounting on an admin mux.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
