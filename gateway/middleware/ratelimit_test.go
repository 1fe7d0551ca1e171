package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("write")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/pools/x/swap", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.Equal(t, "1", res.Header().Get("Retry-After"))
	require.Contains(t, res.Body.String(), `"rate_limited"`)
}

func TestRateLimiterSeparatesGroups(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"read":  {RequestsPerMinute: 1, Burst: 1},
		"write": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	read := limiter.Middleware("read")(okHandler())
	write := limiter.Middleware("write")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/pools", nil)
	res := httptest.NewRecorder()
	read.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	write.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "write bucket is independent of read")

	res = httptest.NewRecorder()
	read.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("write")(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/faucet", nil)
		req.Header.Set("X-Forwarded-For", ip+", 192.168.1.1")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, ip)
	}
}

func TestRateLimiterUnlimitedGroups(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"read": {RequestsPerMinute: 0, Burst: 1},
	}, nil)
	for _, key := range []string{"read", "missing"} {
		handler := limiter.Middleware(key)(okHandler())
		for i := 0; i < 5; i++ {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/height", nil))
			require.Equal(t, http.StatusOK, res.Code)
		}
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }

	limiter.obtainLimiter("write|a", RateLimit{RequestsPerMinute: 1, Burst: 1})
	require.Len(t, limiter.visitors, 1)

	now = now.Add(visitorTTL + time.Second)
	limiter.obtainLimiter("write|b", RateLimit{RequestsPerMinute: 1, Burst: 1})
	require.Len(t, limiter.visitors, 1)
	require.Contains(t, limiter.visitors, "write|b")
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	require.Equal(t, "203.0.113.9", clientID(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 10.0.0.1")
	require.Equal(t, "198.51.100.7", clientID(req))

	req.Header.Set("X-Real-IP", "192.0.2.1")
	require.Equal(t, "192.0.2.1", clientID(req))
}
