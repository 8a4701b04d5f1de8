// Package metrics holds the prometheus collectors of the bot. Every method is
// safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aura_bot"

type Metrics struct {
	purchaseTransitions *prometheus.CounterVec
	preCheckoutRejects  *prometheus.CounterVec
	panelDuration       *prometheus.HistogramVec
	promoRedemptions    *prometheus.CounterVec
	levelChanges        *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	purchasesSwept      prometheus.Counter
}

// MustNewMetrics registers the collectors with reg and panics on conflicts.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		purchaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "transitions_total",
			Help:      "Purchase status transitions.",
		}, []string{"from", "to"}),
		preCheckoutRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "precheckout_rejects_total",
			Help:      "Pre-checkout queries answered negatively.",
		}, []string{"reason"}),
		panelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "request_duration_seconds",
			Help:      "Duration of account preparation calls against the panel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		promoRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "promo",
			Name:      "redemptions_total",
			Help:      "Promo code redemption attempts by result.",
		}, []string{"result"}),
		levelChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "level",
			Name:      "changes_total",
			Help:      "Level changes by target level and source.",
		}, []string{"to", "source"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Panel webhook deliveries by event and outcome.",
		}, []string{"event", "outcome"}),
		purchasesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "swept_total",
			Help:      "Stale purchases moved to cancel by the cleanup sweep.",
		}),
	}

	reg.MustRegister(
		m.purchaseTransitions,
		m.preCheckoutRejects,
		m.panelDuration,
		m.promoRedemptions,
		m.levelChanges,
		m.webhookEvents,
		m.purchasesSwept,
	)
	return m
}

func (m *Metrics) PurchaseTransition(from, to string) {
	if m == nil {
		return
	}
	m.purchaseTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) PreCheckoutRejected(reason string) {
	if m == nil {
		return
	}
	m.preCheckoutRejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObservePanel(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.panelDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func (m *Metrics) PromoRedemption(result string) {
	if m == nil {
		return
	}
	m.promoRedemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) LevelChange(to, source string) {
	if m == nil {
		return
	}
	m.levelChanges.WithLabelValues(to, source).Inc()
}

func (m *Metrics) WebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) PurchasesSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purchasesSwept.Add(float64(n))
}
