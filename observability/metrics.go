package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks operations executed by the accounting service.
type EngineMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	reserves    *prometheus.GaugeVec
	accumulator *prometheus.GaugeVec
	saturations *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// OperationMetrics returns the lazily-initialised registry for engine
// operations.
func OperationMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fall",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fall",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for engine operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "fall",
				Subsystem: "pool",
				Name:      "reserve",
				Help:      "Current recorded reserve per pool and asset.",
			}, []string{"pool", "asset"}),
			accumulator: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "fall",
				Subsystem: "pool",
				Name:      "accumulator",
				Help:      "Current accumulator value per pool and kind.",
			}, []string{"pool", "kind"}),
			saturations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fall",
				Subsystem: "engine",
				Name:      "accumulator_saturations_total",
				Help:      "Count of accumulators that reached their saturation point.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			engineRegistry.operations,
			engineRegistry.latency,
			engineRegistry.reserves,
			engineRegistry.accumulator,
			engineRegistry.saturations,
		)
	})
	return engineRegistry
}

// Observe records the outcome of a single operation. The outcome label is the
// supplied error class, or "success" when class is empty.
func (m *EngineMetrics) Observe(operation, class string, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := strings.TrimSpace(class)
	if outcome == "" {
		outcome = "success"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordPool updates the reserve and accumulator gauges for a pool.
func (m *EngineMetrics) RecordPool(pool, assetA, assetB string, reserveA, reserveB, borrowAcc, shareAcc uint64) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(pool, labelAsset(assetA)).Set(float64(reserveA))
	m.reserves.WithLabelValues(pool, labelAsset(assetB)).Set(float64(reserveB))
	m.accumulator.WithLabelValues(pool, "borrow_interest").Set(float64(borrowAcc))
	m.accumulator.WithLabelValues(pool, "share_lending").Set(float64(shareAcc))
}

// RecordSaturation increments the saturation counter for an accumulator kind.
func (m *EngineMetrics) RecordSaturation(kind string) {
	if m == nil {
		return
	}
	if kind = strings.TrimSpace(kind); kind == "" {
		kind = "unknown"
	}
	m.saturations.WithLabelValues(kind).Inc()
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}
