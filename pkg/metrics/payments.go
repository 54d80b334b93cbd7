package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts gateway confirmation attempts by outcome.
type PaymentMetrics struct {
	confirmations *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmations_total",
		Help:      "Gateway payment confirmations partitioned by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(confirmations)
	return &PaymentMetrics{confirmations: confirmations}
}

// Confirmation records one attempt; outcome is an error code or "ok".
func (m *PaymentMetrics) Confirmation(gateway, outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(gateway, outcome).Inc()
}
