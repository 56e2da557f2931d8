package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoyaltyMetrics records ledger and reconciliation activity.
type LoyaltyMetrics struct {
	ledgerEntries   *prometheus.CounterVec
	ledgerRejected  *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	confirmDuration *prometheus.HistogramVec
}

// NewLoyaltyMetrics registers the loyalty metrics on the provided registerer.
func NewLoyaltyMetrics(reg prometheus.Registerer) *LoyaltyMetrics {
	if reg == nil {
		return &LoyaltyMetrics{}
	}
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Accepted ledger transactions by kind.",
	}, []string{"kind"})
	ledgerRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejected_total",
		Help: "Rejected ledger mutations by reason.",
	}, []string{"reason"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processed payment provider webhook events.",
	}, []string{"provider", "result"})
	confirmDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_confirm_duration_seconds",
		Help:    "Duration of payment confirmation reconciliation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	reg.MustRegister(ledgerEntries, ledgerRejected, webhookEvents, confirmDuration)
	return &LoyaltyMetrics{
		ledgerEntries:   ledgerEntries,
		ledgerRejected:  ledgerRejected,
		webhookEvents:   webhookEvents,
		confirmDuration: confirmDuration,
	}
}

// IncLedgerEntry counts one accepted ledger transaction.
func (m *LoyaltyMetrics) IncLedgerEntry(kind string) {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncLedgerRejected counts one rejected mutation attempt.
func (m *LoyaltyMetrics) IncLedgerRejected(reason string) {
	if m == nil || m.ledgerRejected == nil {
		return
	}
	m.ledgerRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncWebhookEvent counts one processed webhook delivery.
func (m *LoyaltyMetrics) IncWebhookEvent(provider, result string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// ObserveConfirmDuration records how long a payment confirmation took.
func (m *LoyaltyMetrics) ObserveConfirmDuration(provider string, duration time.Duration) {
	if m == nil || m.confirmDuration == nil {
		return
	}
	m.confirmDuration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
