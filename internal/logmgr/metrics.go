// Copyright 2025 The Jafka Authors.

package logmgr

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the small set of prometheus collectors the manager updates
// about its own health. A full metrics pipeline is out of scope; this
// exists so the registered broker's registry size, flush failures, and
// reaped segments are observable without inventing a bespoke reporting
// format.
type Metrics struct {
	registrySize   prometheus.Gauge
	flushFailures  prometheus.Counter
	segmentsDeleted prometheus.Counter
}

// NewMetrics builds the collectors and registers them against reg. A nil
// reg is accepted and produces collectors that simply aren't exported
// anywhere, so callers that don't care about metrics don't need a
// conditional.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jafka",
			Subsystem: "logmgr",
			Name:      "registry_size",
			Help:      "Number of Log instances currently tracked by the registry.",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jafka",
			Subsystem: "logmgr",
			Name:      "flush_failures_total",
			Help:      "Count of fatal IOErrors observed on the flush path.",
		}),
		segmentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jafka",
			Subsystem: "logmgr",
			Name:      "segments_deleted_total",
			Help:      "Count of segments actually unlinked by the retention engine.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.registrySize, m.flushFailures, m.segmentsDeleted)
	}
	return m
}

func (m *Metrics) SetRegistrySize(n int)     { m.registrySize.Set(float64(n)) }
func (m *Metrics) IncFlushFailures()         { m.flushFailures.Inc() }
func (m *Metrics) AddSegmentsDeleted(n int)  { m.segmentsDeleted.Add(float64(n)) }
