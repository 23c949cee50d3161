package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
)

// Metrics holds the connector's counters. Each instance registers with its
// own registry so tests can build as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	InboundMessages      *prometheus.CounterVec
	VerificationFailures *prometheus.CounterVec
	OutboundSubmissions  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securex",
			Name:      "inbound_messages_total",
			Help:      "Provider messages received, by message type and outcome.",
		}, []string{"message_type", "outcome"}),
		VerificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securex",
			Name:      "security_verification_failures_total",
			Help:      "Security header verification failures, by kind.",
		}, []string{"kind"}),
		OutboundSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securex",
			Name:      "outbound_submissions_total",
			Help:      "Consumer Submit calls, by outcome.",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.InboundMessages,
		m.VerificationFailures,
		m.OutboundSubmissions,
	)
	return m
}

// ObserveInbound records a routed provider message.
func (m *Metrics) ObserveInbound(messageType string, accepted bool) {
	if m == nil {
		return
	}
	outcome := OutcomeRejected
	if accepted {
		outcome = OutcomeAccepted
	}
	m.InboundMessages.WithLabelValues(messageType, outcome).Inc()
}

// ObserveVerificationFailure records a failed security header check.
func (m *Metrics) ObserveVerificationFailure(kind string) {
	if m == nil {
		return
	}
	m.VerificationFailures.WithLabelValues(kind).Inc()
}

// ObserveSubmission records an outbound Submit call.
func (m *Metrics) ObserveSubmission(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.OutboundSubmissions.WithLabelValues(outcome).Inc()
}
