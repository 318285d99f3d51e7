// metrics.go - Metrics collection for the ledger node
package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "zkutxo"
	subsystem        = "ledger"
)

// Metrics holds the node's collectors in a private registry. The CLI is
// short-lived, so metrics are written to a text file rather than served.
type Metrics struct {
	registry *prometheus.Registry

	transactionsTotal *prometheus.CounterVec
	proveDuration     prometheus.Histogram
	utxoCount         prometheus.Gauge
}

// NewMetrics creates and registers the node's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "transactions_total",
				Help:      "Total number of transactions processed",
			},
			[]string{"result"}, // result: "applied", "rejected", "proven"
		),
		proveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "prove_duration_seconds",
				Help:      "Time taken to execute and prove a transition",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		utxoCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: subsystem,
				Name:      "utxos",
				Help:      "Number of unspent outputs in the current state",
			},
		),
	}
	m.registry.MustRegister(m.transactionsTotal, m.proveDuration, m.utxoCount)
	return m
}

func (m *Metrics) RecordTransaction(result string) {
	m.transactionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordProve(d time.Duration) {
	m.proveDuration.Observe(d.Seconds())
}

func (m *Metrics) SetUtxoCount(n int) {
	m.utxoCount.Set(float64(n))
}

// Flush writes every metric to path in the text exposition format. An
// empty path is a no-op.
func (m *Metrics) Flush(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
