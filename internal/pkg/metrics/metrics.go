// Package metrics holds the prometheus collectors of the command dispatch path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "commhub"

// Registry is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// DeliveriesTotal counts destination deliveries.
	// kind: command/system, result: success/failed
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of command deliveries by destination, kind and result.",
		},
		[]string{"destination", "kind", "result"},
	)

	// DeliveryLatency observes encode+extract+deliver time per destination.
	DeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Latency of a single destination delivery.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"destination"},
	)

	// DispatchQueueDepth is the number of work items waiting for a worker.
	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Work items queued in the async dispatch processor.",
		},
	)

	// DispatchItemsTotal counts processed work items.
	// item: invocation/batch, result: success/failed/dropped
	DispatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_items_total",
			Help:      "Work items handled by the async dispatch processor.",
		},
		[]string{"item", "result"},
	)

	// DispatchFailuresTotal counts swallowed failures by error kind.
	DispatchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Failures swallowed at the dispatch worker boundary, by error kind.",
		},
		[]string{"kind"},
	)

	// BatchOperationsTotal counts finished batch operations by final status.
	BatchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_operations_total",
			Help:      "Batch operations processed, by final processing status.",
		},
		[]string{"status"},
	)

	// RegistrationsTotal counts registration requests by outcome.
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Device registration requests, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		DeliveriesTotal,
		DeliveryLatency,
		DispatchQueueDepth,
		DispatchItemsTotal,
		DispatchFailuresTotal,
		BatchOperationsTotal,
		RegistrationsTotal,
	)
}
