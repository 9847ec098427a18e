package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/docquery-assistant/internal/adapters/http"
	"github.com/kirillkom/docquery-assistant/internal/bootstrap"
	"github.com/kirillkom/docquery-assistant/internal/config"
	"github.com/kirillkom/docquery-assistant/internal/observability/logging"
	"github.com/kirillkom/docquery-assistant/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service: service,
		Logger:  logger,
		ModelAttempts: func(model string, err error) {
			httpMetrics.RecordModelAttempt(service, model, err)
		},
		BreakerStates: func(operation string, _, to gobreaker.State) {
			httpMetrics.RecordBreakerState(service, operation, int(to))
		},
	})
	if err != nil {
		logger.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.Store.Run(ctx, time.Minute)

	router, err := httpadapter.NewRouter(app.Sessions, app.Upload, app.Override, app.Ask, app.Models, httpadapter.Options{
		Service:        service,
		Logger:         logger,
		Metrics:        httpMetrics,
		RateLimitRPS:   cfg.HTTPRateLimitRPS,
		RateLimitBurst: cfg.HTTPRateLimitBurst,
		MaxInflight:    cfg.HTTPMaxInflight,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", httpMetrics.Middleware(service, router.Handler()))

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.HTTPMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.HTTPMaxConns)
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort, "ledger", cfg.LedgerBackend, "retrieval", cfg.RetrievalEnabled)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown", "error", err)
	}
}
