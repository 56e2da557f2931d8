package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLoyaltyMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLoyaltyMetrics(reg)

	metrics.IncLedgerEntry("scan_accrual")
	metrics.IncLedgerRejected("insufficient_funds")
	metrics.IncWebhookEvent("stripe", "processed")
	metrics.ObserveConfirmDuration("stripe", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ledger_entries_total", "kind", "scan_accrual"); err != nil {
		t.Fatalf("fetch entries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected entries=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_rejected_total", "reason", "insufficient_funds"); err != nil {
		t.Fatalf("fetch rejected: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejected=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_total", "provider", "stripe"); err != nil {
		t.Fatalf("fetch webhook: %v", err)
	} else if got != 1 {
		t.Fatalf("expected webhook=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "payment_confirm_duration_seconds", "provider", "stripe"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestLoyaltyMetricsNilSafe(t *testing.T) {
	var metrics *LoyaltyMetrics
	metrics.IncLedgerEntry("scan_accrual")
	metrics.IncWebhookEvent("paypal", "skipped")

	empty := NewLoyaltyMetrics(nil)
	empty.IncLedgerRejected("underflow")
	empty.ObserveConfirmDuration("paypal", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
