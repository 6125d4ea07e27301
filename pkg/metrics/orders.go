package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts lifecycle transitions and provider confirmations.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	payments    *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer yields
// a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Committed order lifecycle transitions.",
	}, []string{"operation", "status"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_rejected_total",
		Help:      "Lifecycle operations refused by a guard.",
	}, []string{"operation", "code"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmations_total",
		Help:      "Provider confirmation attempts by outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(transitions, rejected, payments)
	return &OrderMetrics{transitions: transitions, rejected: rejected, payments: payments}
}

// Transition records a committed operation and the resulting order status.
func (m *OrderMetrics) Transition(operation, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(operation), normalizeLabel(status)).Inc()
}

// Rejected records an operation refused with the given error code.
func (m *OrderMetrics) Rejected(operation, code string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// PaymentOutcome records one provider confirmation (success, replayed, failed).
func (m *OrderMetrics) PaymentOutcome(provider, outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}
