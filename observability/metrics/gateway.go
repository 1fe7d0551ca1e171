package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type GatewayMetrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	throttles   *prometheus.CounterVec
	subscribers prometheus.Gauge
}

var (
	gatewayOnce     sync.Once
	gatewayRegistry *GatewayMetrics
)

func Gateway() *GatewayMetrics {
	gatewayOnce.Do(func() {
		gatewayRegistry = &GatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fall_gateway_requests_total",
				Help: "Count of gateway requests by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fall_gateway_request_duration_seconds",
				Help:    "Latency distribution for gateway routes.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "fall_gateway_throttles_total",
				Help: "Number of requests rejected by the gateway by reason.",
			}, []string{"reason"}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "fall_gateway_event_subscribers",
				Help: "Open websocket event subscriptions.",
			}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
			gatewayRegistry.subscribers,
		)
	})
	return gatewayRegistry
}

func (m *GatewayMetrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (m *GatewayMetrics) IncThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

func (m *GatewayMetrics) AddSubscribers(delta float64) {
	if m == nil {
		return
	}
	m.subscribers.Add(delta)
}
