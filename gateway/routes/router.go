package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fall/gateway/middleware"
	"fall/observability/metrics"
)

// Rate limit groups.
const (
	LimitRead  = "read"
	LimitWrite = "write"
)

type Config struct {
	Service       Service
	Events        Subscriber
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	// HealthHandler overrides the default /healthz responder.
	HealthHandler http.Handler
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("routes: service required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteProblem(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	health := cfg.HealthHandler
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
		})
	}
	r.Method(http.MethodGet, "/healthz", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if cfg.Events != nil {
		er := &eventRoutes{events: cfg.Events, origins: cfg.CORS.AllowedOrigins, logger: logger, metrics: metrics.Gateway()}
		r.Get("/ws/events", er.stream)
	}

	queries := &queryRoutes{svc: cfg.Service, logger: logger}
	mutations := &poolRoutes{svc: cfg.Service, logger: logger}
	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			if cfg.RateLimiter != nil {
				read.Use(cfg.RateLimiter.Middleware(LimitRead))
			}
			queries.mount(read)
		})
		v1.Group(func(write chi.Router) {
			if cfg.RateLimiter != nil {
				write.Use(cfg.RateLimiter.Middleware(LimitWrite))
			}
			if cfg.Authenticator != nil {
				write.Use(cfg.Authenticator.Middleware())
			}
			mutations.mount(write)
		})
		v1.Group(func(admin chi.Router) {
			if cfg.RateLimiter != nil {
				admin.Use(cfg.RateLimiter.Middleware(LimitWrite))
			}
			if cfg.Authenticator != nil {
				admin.Use(cfg.Authenticator.Middleware(middleware.ScopeAdmin))
			}
			mutations.mountAdmin(admin)
		})
	})
	return r, nil
}
