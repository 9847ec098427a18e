package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/docquery-assistant/internal/config"
	"github.com/kirillkom/docquery-assistant/internal/core/ports"
	"github.com/kirillkom/docquery-assistant/internal/core/usecase"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/repository/neo4j"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/session/memory"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/docquery-assistant/internal/observability/logging"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// LogOutput mirrors the log channels. Defaults to stdout.
	LogOutput io.Writer
	// ModelAttempts is told about every generation attempt.
	ModelAttempts ollama.AttemptObserver
	// BreakerStates is told about circuit breaker transitions of every executor.
	BreakerStates resilience.StateObserver
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Channels *logging.Channels

	Store  *memory.Store
	Ledger ports.DocumentLedger
	// Queue is nil when retrieval indexing is disabled.
	Queue *nats.Queue

	Sessions *usecase.SessionUseCase
	Upload   *usecase.UploadUseCase
	Override *usecase.OverrideUseCase
	Ask      *usecase.AskUseCase
	Index    *usecase.IndexDocumentUseCase
	Models   *ollama.ModelCatalog

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewJSONLogger(opts.Service, cfg.LogLevel)
	}
	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	channels, err := openChannels(cfg, opts.Service, opts.LogOutput)
	if err != nil {
		return nil, err
	}
	app.Channels = channels
	app.closers = append(app.closers, func() { _ = channels.Close() })
	journal := usecase.Journal{
		Upload:         channels.Upload,
		Classification: channels.Classification,
		UserActions:    channels.UserActions,
		Errors:         channels.Errors,
	}

	ledger, err := app.openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Ledger = ledger

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	modelPolicy := resilience.ModelCallDefaults()
	modelPolicy.Retry.MaxAttempts = cfg.ModelRetryMaxAttempts
	modelPolicy.Breaker.Enabled = cfg.ModelBreakerEnabled
	modelPolicy.Breaker.OpenTimeout = cfg.ModelBreakerOpenTimeout
	modelExecutor := resilience.NewExecutor(modelPolicy,
		resilience.WithLogger(logger),
		resilience.WithStateObserver(opts.BreakerStates),
	)
	infraExecutor := resilience.NewExecutor(resilience.InfrastructureDefaults(),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(opts.BreakerStates),
	)

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, ollama.Options{
		GenModel:       cfg.OllamaGenModel,
		EmbedModel:     cfg.OllamaEmbedModel,
		FallbackModels: cfg.OllamaFallbackModels,
		Timeout:        cfg.OllamaTimeout,
		Executor:       modelExecutor,
		Logger:         logger,
	})
	generator := ollama.NewGenerator(ollamaClient, ollama.WithAttemptObserver(opts.ModelAttempts))
	app.Models = ollama.NewModelCatalog(ollamaClient)

	app.Store = memory.New(
		memory.WithIdleTimeout(cfg.SessionIdleTimeout),
		memory.WithLogger(logger),
	)
	contentExtractor := extractor.New(cfg.MaxUploadBytes)

	var retrieval *usecase.RetrievalQueryUseCase
	var queue ports.MessageQueue
	if cfg.RetrievalEnabled {
		natsQueue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: infraExecutor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = natsQueue
		app.closers = append(app.closers, natsQueue.Close)
		queue = natsQueue

		embedder := ollama.NewEmbedder(ollamaClient)
		vectorDB := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{Executor: infraExecutor})
		chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

		retrieval = usecase.NewRetrievalQueryUseCase(embedder, vectorDB, generator, cfg.RAGTopK, journal)
		app.Index = usecase.NewIndexDocumentUseCase(ledger, storage, contentExtractor, chunker, embedder, vectorDB)
	}

	app.Sessions = usecase.NewSessionUseCase(app.Store, ledger, journal)
	app.Upload = usecase.NewUploadUseCase(app.Store, contentExtractor, storage, ledger, queue, journal)
	app.Override = usecase.NewOverrideUseCase(app.Store, ledger, journal)
	app.Ask = usecase.NewAskUseCase(app.Store, generator, retrieval, journal)

	ok = true
	return app, nil
}

func openChannels(cfg config.Config, service string, out io.Writer) (*logging.Channels, error) {
	var notifier logging.Notifier
	if cfg.SMTPHost != "" {
		notifier = logging.NewSMTPNotifier(logging.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
		})
	}
	channels, err := logging.OpenChannels(logging.ChannelOptions{
		Service:  service,
		Level:    cfg.LogLevel,
		Dir:      cfg.LogDir,
		Stdout:   out,
		Notifier: notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("open log channels: %w", err)
	}
	return channels, nil
}

func (a *App) openLedger(ctx context.Context, cfg config.Config) (ports.DocumentLedger, error) {
	switch cfg.LedgerBackend {
	case config.LedgerNeo4j:
		ledger, err := neo4j.Open(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, fmt.Errorf("open neo4j: %w", err)
		}
		a.closers = append(a.closers, func() { _ = ledger.Close(context.Background()) })
		if err := ledger.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure neo4j schema: %w", err)
		}
		return ledger, nil
	default:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
