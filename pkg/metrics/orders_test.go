package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestOrderMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.Transition("record_payment", "pending")
	m.Transition("record_payment", "pending")
	m.Rejected("request_refund", "CONFLICT")
	m.PaymentOutcome("wallet", "success")
	m.PaymentOutcome("", "failed")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "storefront_order_transitions_total", "operation", "record_payment")
	require.NoError(t, err)
	require.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "storefront_order_transitions_rejected_total", "code", "CONFLICT")
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "storefront_payment_confirmations_total", "provider", "unknown")
	require.NoError(t, err)
	require.Equal(t, 1.0, got)
}
