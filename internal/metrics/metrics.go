// Package metrics exposes Prometheus counters for the ledger engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	UpdatesApplied *prometheus.CounterVec
	UpdatesSkipped *prometheus.CounterVec
	BatchWrites    *prometheus.CounterVec
	RetrySleeps    prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	AuditRecords   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.UpdatesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "updates_applied_total",
			Help:      "Stat updates written to the ledger",
		},
		[]string{"section", "header"},
	)
	m.UpdatesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "updates_skipped_total",
			Help:      "Stat updates skipped because the row or column could not be resolved",
		},
		[]string{"section", "reason"},
	)
	m.BatchWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "batch_writes_total",
			Help:      "Batched worksheet writes by outcome",
		},
		[]string{"section", "result"},
	)
	m.RetrySleeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "retry_sleeps_total",
			Help:      "Backoff sleeps taken after rate limited calls",
		},
	)
	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "cache_lookups_total",
			Help:      "Row and column cache lookups",
		},
		[]string{"cache", "result"},
	)
	m.AuditRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "audit_records_total",
			Help:      "Command records delivered to archival sinks",
		},
		[]string{"sink", "result"},
	)

	m.registry.MustRegister(
		m.UpdatesApplied,
		m.UpdatesSkipped,
		m.BatchWrites,
		m.RetrySleeps,
		m.CacheLookups,
		m.AuditRecords,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) UpdateApplied(section, header string) {
	if m == nil {
		return
	}
	m.UpdatesApplied.WithLabelValues(section, header).Inc()
}

func (m *Metrics) UpdateSkipped(section, reason string) {
	if m == nil {
		return
	}
	m.UpdatesSkipped.WithLabelValues(section, reason).Inc()
}

func (m *Metrics) BatchWrite(section, result string) {
	if m == nil {
		return
	}
	m.BatchWrites.WithLabelValues(section, result).Inc()
}

func (m *Metrics) RetrySleep() {
	if m == nil {
		return
	}
	m.RetrySleeps.Inc()
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) AuditRecord(sink string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.AuditRecords.WithLabelValues(sink, result).Inc()
}
