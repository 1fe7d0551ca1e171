package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"fall/config"
	"fall/core"
	"fall/core/clock"
	"fall/core/events"
	"fall/gateway/middleware"
	"fall/gateway/routes"
	"fall/journal"
	"fall/observability"
	"fall/observability/logging"
	telemetry "fall/observability/otel"
	"fall/storage"
)

const serviceName = "falld"

func main() {
	cfgPath := flag.String("config", "./config.toml", "path to the falld configuration file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "falld: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Logging.Debug {
		level = slog.LevelDebug
	}
	logger := logging.Setup(serviceName, cfg.Logging.Env, logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Level:      level,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := storage.Open(cfg.Storage.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	opts := core.Options{
		Clock:   clock.NewWall(cfg.Genesis(), cfg.BlockInterval()),
		Lending: cfg.LendingParams(),
		Pauses:  cfg.Pauses(),
		Metrics: observability.OperationMetrics(),
		Logger:  logger.With("component", "core"),
		Faucet:  cfg.Faucet,
	}
	if dsn := cfg.JournalDSN(); dsn != "" {
		j, err := journal.Open(dsn)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		opts.Journal = j
	}
	broadcaster := events.NewBroadcaster()
	opts.Emitter = events.Fanout{broadcaster, observability.Events()}

	svc, err := core.NewService(db, opts)
	if err != nil {
		return err
	}
	admin, err := cfg.ExchangeAdmin()
	if err != nil {
		return fmt.Errorf("exchange admin: %w", err)
	}
	if _, err := svc.EnsureExchange(ctx, cfg.Exchange.ID, admin, cfg.Exchange.LiquidityFeeBps, cfg.Exchange.ProtocolFeeBps); err != nil {
		return fmt.Errorf("register exchange %s: %w", cfg.Exchange.ID, err)
	}
	logger.Info("exchange ready", "exchange", cfg.Exchange.ID, "admin", admin.String(), "storage", cfg.Storage.Backend)

	httpServer, err := newHTTPServer(cfg, svc, broadcaster, logger)
	if err != nil {
		return err
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddress, err)
	}
	if cfg.MaxConnections > 0 {
		httpListener = netutil.LimitListener(httpListener, cfg.MaxConnections)
	}

	grpcServer, healthServer := newHealthServer()
	var grpcListener net.Listener
	if addr := strings.TrimSpace(cfg.GRPCAddress); addr != "" {
		if grpcListener, err = net.Listen("tcp", addr); err != nil {
			_ = httpListener.Close()
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", "address", httpListener.Addr().String(), "max_connections", cfg.MaxConnections)
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("serve http: %w", err)
		}
	}()
	if grpcListener != nil {
		go func() {
			logger.Info("health service listening", "address", grpcListener.Addr().String())
			if err := grpcServer.Serve(grpcListener); err != nil {
				serverErr <- fmt.Errorf("serve grpc: %w", err)
			}
		}()
	}
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server failed", "error", runErr)
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	return runErr
}

func newHTTPServer(cfg *config.Config, svc *core.Service, broadcaster *events.Broadcaster, logger *slog.Logger) (*http.Server, error) {
	gatewayLogger := logger.With("component", "gateway")
	limit := middleware.RateLimit{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute, Burst: cfg.RateLimit.Burst}
	router, err := routes.New(routes.Config{
		Service: svc,
		Events:  broadcaster,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, gatewayLogger),
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			routes.LimitRead:  {RequestsPerMinute: limit.RequestsPerMinute * 4, Burst: limit.Burst * 4},
			routes.LimitWrite: limit,
		}, gatewayLogger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: cfg.Logging.Debug,
		}, gatewayLogger),
		Logger: gatewayLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure routes: %w", err)
	}
	return &http.Server{
		Handler:           otelhttp.NewHandler(router, "gateway"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(gatewayLogger.Handler(), slog.LevelWarn),
	}, nil
}

func newHealthServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}
