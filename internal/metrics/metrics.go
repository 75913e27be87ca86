package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cross_dapp"

// Metrics groups the collectors of the dapp. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	LifecycleEvents  *prometheus.CounterVec
	SessionConnected prometheus.Gauge
	Submissions      *prometheus.CounterVec
	PollOutcomes     *prometheus.CounterVec
	PollQueryRetries prometheus.Counter
	Signatures       *prometheus.CounterVec
}

// New creates the collectors and registers them on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Wallet lifecycle notifications processed, by type and whether they changed the session.",
		}, []string{"type", "changed"}),
		SessionConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_connected",
			Help:      "1 while a wallet account is connected.",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_submissions_total",
			Help:      "Transaction submissions by kind and result.",
		}, []string{"kind", "result"}),
		PollOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_poll_outcomes_total",
			Help:      "Terminal or abandoned transaction poll outcomes.",
		}, []string{"status"}),
		PollQueryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_poll_query_retries_total",
			Help:      "Transaction status queries retried after a transient failure.",
		}),
		Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Signing requests by type and result.",
		}, []string{"type", "result"}),
	}

	m.Registry.MustRegister(
		m.LifecycleEvents,
		m.SessionConnected,
		m.Submissions,
		m.PollOutcomes,
		m.PollQueryRetries,
		m.Signatures,
	)

	return m
}

func (m *Metrics) ObserveLifecycleEvent(eventType string, changed bool, connected bool) {
	if m == nil {
		return
	}

	label := "false"
	if changed {
		label = "true"
	}
	m.LifecycleEvents.WithLabelValues(eventType, label).Inc()

	if connected {
		m.SessionConnected.Set(1)
	} else {
		m.SessionConnected.Set(0)
	}
}

func (m *Metrics) ObserveSubmission(kind string, err error) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ObservePollOutcome(status string) {
	if m == nil {
		return
	}
	m.PollOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePollRetry() {
	if m == nil {
		return
	}
	m.PollQueryRetries.Inc()
}

func (m *Metrics) ObserveSignature(sigType string, err error) {
	if m == nil {
		return
	}
	m.Signatures.WithLabelValues(sigType, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
