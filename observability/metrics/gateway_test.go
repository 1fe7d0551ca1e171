package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGatewayMetrics(t *testing.T) {
	m := Gateway()
	before := testutil.ToFloat64(m.requests.WithLabelValues("/v1/pools", "200"))
	m.ObserveRequest("/v1/pools", 200, time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/v1/pools", "200")); got != before+1 {
		t.Fatalf("request count %v", got)
	}
	m.IncThrottle("")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown")); got < 1 {
		t.Fatalf("throttle count %v", got)
	}
	start := testutil.ToFloat64(m.subscribers)
	m.AddSubscribers(1)
	m.AddSubscribers(-1)
	if got := testutil.ToFloat64(m.subscribers); got != start {
		t.Fatalf("subscriber gauge %v", got)
	}
}
