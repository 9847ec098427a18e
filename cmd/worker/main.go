package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/docquery-assistant/internal/bootstrap"
	"github.com/kirillkom/docquery-assistant/internal/config"
	"github.com/kirillkom/docquery-assistant/internal/observability/logging"
	"github.com/kirillkom/docquery-assistant/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)
	if !cfg.RetrievalEnabled {
		logger.Error("worker requires RETRIEVAL_ENABLED=true")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service: service,
		Logger:  logger,
		BreakerStates: func(operation string, _, to gobreaker.State) {
			workerMetrics.RecordBreakerState(operation, int(to))
		},
	})
	if err != nil {
		logger.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, documentID string) error {
		var uploadedAt time.Time
		var docType string
		if doc, err := app.Ledger.GetByID(handlerCtx, documentID); err == nil {
			uploadedAt, docType = doc.CreatedAt, string(doc.Type)
		}
		run := workerMetrics.BeginIndex(uploadedAt)

		indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		err := app.Index.IndexByID(indexCtx, documentID)
		run.Done(docType, err)
		return err
	})
	if err != nil {
		logger.Error("worker subscribe", "error", err)
		os.Exit(1)
	}
}
