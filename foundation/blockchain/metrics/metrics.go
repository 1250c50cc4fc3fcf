// Package metrics defines the prometheus collectors updated by the
// blockchain packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace all blockchain metrics are defined under.
const Namespace = "frontier"

// NewCounter creates a Counter metric under the namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewGauge creates a Gauge metric under the namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewHistogramWithBuckets creates a Histogram metric with custom buckets.
func NewHistogramWithBuckets(name, subsystem, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}, labels)
}

// =============================================================================

var (
	// TxApplied counts applied transactions by execution outcome.
	TxApplied = NewCounter("applied_total", "tx", "transactions applied by outcome", []string{"outcome"})

	// TxDeclined counts transactions that failed validation.
	TxDeclined = NewCounter("declined_total", "tx", "transactions declined during validation", []string{"reason"})

	// GasUsed counts gas charged to applied transactions.
	GasUsed = NewCounter("gas_used_total", "tx", "gas charged to applied transactions", []string{}).WithLabelValues()
)

var (
	// BlockImports counts block imports by result.
	BlockImports = NewCounter("imports_total", "block", "block imports by result", []string{"result"})

	// BlockImportDuration observes the time spent importing a block.
	BlockImportDuration = NewHistogramWithBuckets(
		"import_duration_seconds",
		"block",
		"time spent importing a block",
		[]string{},
		prometheus.ExponentialBuckets(0.001, 2, 14),
	).WithLabelValues()

	// HeadNumber reports the number of the canonical head.
	HeadNumber = NewGauge("head_number", "block", "number of the canonical head", []string{}).WithLabelValues()
)

var (
	// PendingTxs reports the size of the pending lists.
	PendingTxs = NewGauge("txs", "pending", "transactions held by the pending state", []string{"list"})

	// PendingReconciles counts replays of the pending state.
	PendingReconciles = NewCounter("reconciles_total", "pending", "replays of the pending state", []string{}).WithLabelValues()
)
