package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Order placement outcomes.
const (
	OutcomePlaced   = "placed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// CheckoutMetrics tracks storefront checkout activity.
type CheckoutMetrics struct {
	placements *prometheus.CounterVec
	recomputes *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "florist_order_placements_total",
		Help: "Order placement attempts by outcome.",
	}, []string{"outcome"})
	recomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "florist_total_recomputes_total",
		Help: "Order total computations by result (applied or stale).",
	}, []string{"result"})
	reg.MustRegister(placements, recomputes)
	return &CheckoutMetrics{placements: placements, recomputes: recomputes}
}

func (c *CheckoutMetrics) IncPlacement(outcome string) {
	if c == nil || c.placements == nil {
		return
	}
	c.placements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRecompute counts a finished total computation; stale results were discarded.
func (c *CheckoutMetrics) IncRecompute(stale bool) {
	if c == nil || c.recomputes == nil {
		return
	}
	result := "applied"
	if stale {
		result = "stale"
	}
	c.recomputes.WithLabelValues(result).Inc()
}
