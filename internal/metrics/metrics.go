// Package metrics defines the Prometheus collectors for offpay.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "offpay"

// Metrics holds the collectors shared by the flows, the reconciler and the
// sync server.
type Metrics struct {
	sends        *prometheus.CounterVec
	receives     *prometheus.CounterVec
	syncRecords  *prometheus.CounterVec
	receipts     *prometheus.CounterVec
	syncDuration prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_total",
			Help:      "Send flow invocations by result.",
		}, []string{"result"}),
		receives: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receive_total",
			Help:      "Receive flow invocations by result.",
		}, []string{"result"}),
		syncRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Ledger records submitted during sync by result.",
		}, []string{"result"}),
		receipts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_total",
			Help:      "Receipts accepted by the sync server.",
		}, []string{"duplicate"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of a full sync pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Send counts one send flow outcome.
func (m *Metrics) Send(result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(result).Inc()
}

// Receive counts one receive flow outcome.
func (m *Metrics) Receive(result string) {
	if m == nil {
		return
	}
	m.receives.WithLabelValues(result).Inc()
}

// SyncRecord counts one record submission outcome.
func (m *Metrics) SyncRecord(result string) {
	if m == nil {
		return
	}
	m.syncRecords.WithLabelValues(result).Inc()
}

// Receipt counts one receipt accepted by the server.
func (m *Metrics) Receipt(duplicate bool) {
	if m == nil {
		return
	}
	label := "false"
	if duplicate {
		label = "true"
	}
	m.receipts.WithLabelValues(label).Inc()
}

// SyncPass records how long a sync pass took.
func (m *Metrics) SyncPass(d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(d.Seconds())
}
