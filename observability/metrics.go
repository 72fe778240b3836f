package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Courier, backed by any go-utils
// MetricFactory.
type Metrics struct {
	DeliveriesTotal gu.Counter
	DeliveryLatency gu.Histogram
	PendingLogs     gu.Gauge
	SweepRepairs    gu.Counter
}

// NewMetrics creates Courier metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		DeliveriesTotal: factory.Counter("courier_deliveries_total"),
		DeliveryLatency: factory.Histogram("courier_delivery_latency_seconds"),
		PendingLogs:     factory.Gauge("courier_pending_logs"),
		SweepRepairs:    factory.Counter("courier_sweep_repairs_total"),
	}
}

// RecordDelivery records a delivery attempt with the given final state and latency.
func (m *Metrics) RecordDelivery(state string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"state": state}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordSweep records recovery-sweep repairs by kind.
func (m *Metrics) RecordSweep(kind string, count int) {
	m.SweepRepairs.WithLabels(map[string]string{"kind": kind}).Add(float64(count))
}
