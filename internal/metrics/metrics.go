// Package metrics defines the Prometheus collectors for the reconciliation
// engine: per-error-code counters and per-network gauges for reconciler
// activity. The daemon registers and serves them, but no component in this
// repository increments them or calls RecordError, so every series stays
// at zero. The HTTP endpoint that serves this registry is outside this
// package; this package only owns the collectors themselves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrorsTotal counts errors recorded through RecordError, labeled by
	// their stable IE0xx code and the network they occurred on.
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer_agent",
		Name:      "errors_total",
		Help:      "Count of reconciliation errors by stable error code.",
	}, []string{"protocol_network", "code"})

	// TicksTotal counts completed reconciliation ticks, labeled by outcome.
	TicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer_agent",
		Name:      "reconciliation_ticks_total",
		Help:      "Count of reconciliation ticks by outcome (ok, skipped, error).",
	}, []string{"protocol_network", "outcome"})

	// AllocationsOpenedTotal counts successful allocation opens.
	AllocationsOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer_agent",
		Name:      "allocations_opened_total",
		Help:      "Count of allocations opened by the reconciler.",
	}, []string{"protocol_network"})

	// AllocationsClosedTotal counts successful allocation closes.
	AllocationsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer_agent",
		Name:      "allocations_closed_total",
		Help:      "Count of allocations closed by the reconciler.",
	}, []string{"protocol_network"})

	// ActiveAllocations gauges the number of active allocations observed on
	// the most recent Network View refresh, per network.
	ActiveAllocations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer_agent",
		Name:      "active_allocations",
		Help:      "Number of active allocations observed for this indexer.",
	}, []string{"protocol_network"})

	// DisputesTotal counts persisted POI disputes by status.
	DisputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer_agent",
		Name:      "poi_disputes_total",
		Help:      "Count of persisted POI disputes by status.",
	}, []string{"protocol_network", "status"})
)

// Register adds all collectors to the given registry. Called once at
// startup with the registry the metrics HTTP endpoint (out of scope here)
// ultimately serves.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(ErrorsTotal, TicksTotal, AllocationsOpenedTotal, AllocationsClosedTotal, ActiveAllocations, DisputesTotal)
}

// RecordError increments ErrorsTotal for the given network and stable IE0xx
// error code.
func RecordError(network string, code string) {
	ErrorsTotal.WithLabelValues(network, code).Inc()
}
