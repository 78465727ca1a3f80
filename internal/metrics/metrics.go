package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the payment-path collectors.
type Metrics struct {
	ChargesInitiated *prometheus.CounterVec
	Callbacks        *prometheus.CounterVec
	PromoRedemptions *prometheus.CounterVec
	SweepRepaired    prometheus.Counter
	GatewayLatency   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChargesInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skybooking",
			Name:      "charges_initiated_total",
			Help:      "Charge attempts by payment method and outcome.",
		}, []string{"method", "outcome"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skybooking",
			Name:      "payment_callbacks_total",
			Help:      "Gateway callbacks by payment method and result.",
		}, []string{"method", "result"}),
		PromoRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skybooking",
			Name:      "promo_redemptions_total",
			Help:      "Promo code redemption attempts by outcome.",
		}, []string{"outcome"}),
		SweepRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skybooking",
			Name:      "reconcile_repaired_total",
			Help:      "Bookings repaired by the reconciliation sweep.",
		}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "skybooking",
			Name:      "gateway_request_seconds",
			Help:      "Outbound payment gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.ChargesInitiated, m.Callbacks, m.PromoRedemptions, m.SweepRepaired, m.GatewayLatency)
	}
	return m
}
