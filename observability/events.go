package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"fall/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed engine events. It
// satisfies events.Emitter so it can sit in the service fanout.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fall",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emit increments the counter for the event's type.
func (m *eventMetrics) Emit(e events.Event) {
	if m == nil || e == nil {
		return
	}
	kind := strings.TrimSpace(e.EventType())
	if kind == "" {
		kind = "unknown"
	}
	m.emitted.WithLabelValues(kind).Inc()
}
