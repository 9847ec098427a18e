// Command mcp exposes the assistant as Model Context Protocol tools over stdio.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docquery-assistant/internal/adapters/mcp"
	"github.com/kirillkom/docquery-assistant/internal/bootstrap"
	"github.com/kirillkom/docquery-assistant/internal/config"
	"github.com/kirillkom/docquery-assistant/internal/observability/logging"
)

const (
	service = "mcp"
	version = "0.1.0"
)

func main() {
	// stdout carries the protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger = logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:   service,
		Logger:    logger,
		LogOutput: os.Stderr,
	})
	if err != nil {
		logger.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.Store.Run(ctx, time.Minute)

	tools := mcpadapter.NewTools(app.Sessions, app.Upload, app.Override, app.Ask)
	stdio := server.NewStdioServer(mcpadapter.NewServer(version, tools))
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("mcp server", "error", err)
		os.Exit(1)
	}
}
