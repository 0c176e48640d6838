package metrics

import "github.com/prometheus/client_golang/prometheus"

// BillingMetrics counts ledger outcomes produced by the billing batches and the
// reconciliation paths.
type BillingMetrics struct {
	generated   *prometheus.CounterVec
	confirmed   *prometheus.CounterVec
	settlement  *prometheus.CounterVec
	recordFails *prometheus.CounterVec
}

// NewBillingMetrics registers the billing counters on reg. A nil registerer yields
// a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	generated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_payments_generated_total",
		Help: "Fee generation outcomes per child row.",
	}, []string{"outcome"})
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_payments_confirmed_total",
		Help: "PAID confirmations by reconciliation path.",
	}, []string{"source", "outcome"})
	settlement := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_settlement_records_total",
		Help: "Settlement outcomes per payment.",
	}, []string{"outcome"})
	recordFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolride_batch_record_failures_total",
		Help: "Per-record failures in billing batches.",
	}, []string{"operation"})
	reg.MustRegister(generated, confirmed, settlement, recordFails)
	return &BillingMetrics{
		generated:   generated,
		confirmed:   confirmed,
		settlement:  settlement,
		recordFails: recordFails,
	}
}

// ObserveGeneration adds the counts from one fee generation run.
func (b *BillingMetrics) ObserveGeneration(created, skipped, failed int) {
	if b == nil || b.generated == nil {
		return
	}
	b.generated.WithLabelValues("created").Add(float64(created))
	b.generated.WithLabelValues("skipped").Add(float64(skipped))
	b.generated.WithLabelValues("failed").Add(float64(failed))
	b.incRecordFailures("generation", failed)
}

// ObserveConfirmation records one confirmation attempt. alreadyPaid marks the
// idempotent no-op branch.
func (b *BillingMetrics) ObserveConfirmation(source string, alreadyPaid bool) {
	if b == nil || b.confirmed == nil {
		return
	}
	outcome := "transitioned"
	if alreadyPaid {
		outcome = "already_paid"
	}
	b.confirmed.WithLabelValues(normalizeLabel(source), outcome).Inc()
}

// ObserveSettlement adds the counts from one settlement run.
func (b *BillingMetrics) ObserveSettlement(settled, suspended, failed int) {
	if b == nil || b.settlement == nil {
		return
	}
	b.settlement.WithLabelValues("settled").Add(float64(settled))
	b.settlement.WithLabelValues("suspended").Add(float64(suspended))
	b.settlement.WithLabelValues("failed").Add(float64(failed))
	b.incRecordFailures("settlement", failed)
}

func (b *BillingMetrics) incRecordFailures(operation string, n int) {
	if n <= 0 || b.recordFails == nil {
		return
	}
	b.recordFails.WithLabelValues(operation).Add(float64(n))
}
