// Package nats carries upload events from the api to the indexing worker.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
	"github.com/kirillkom/docquery-assistant/internal/infrastructure/resilience"
)

// DefaultSubject carries document IDs of uploads awaiting indexing.
const DefaultSubject = "documents.uploaded"

// Workers share one queue group so every upload is indexed once.
const workerQueueGroup = "docquery-indexers"

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url, connectOptions(options, logger)...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func connectOptions(options Options, logger *slog.Logger) []nats.Option {
	timeout := options.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	wait := options.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retry := true
	if options.RetryOnFailedConnect != nil {
		retry = *options.RetryOnFailedConnect
	}
	return []nats.Option{
		nats.Name("docquery-assistant"),
		nats.Timeout(timeout),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retry),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentUploaded(ctx context.Context, documentID string) error {
	if documentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "publish upload event", errors.New("empty document id"))
	}
	msg, err := encodeUploadEvent(q.subject, uploadEvent{DocumentID: documentID, PublishedAt: q.now().UTC()})
	if err != nil {
		return err
	}

	publish := func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", publish, classifyPublishError)
	} else {
		err = publish(ctx)
	}
	if err != nil && classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish upload event", err)
	}
	return err
}

// SubscribeDocumentUploaded delivers document IDs to handler until ctx is
// canceled, then drains the subscription. Malformed events are logged and
// skipped.
func (q *Queue) SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeUploadEvent(msg)
		if err != nil {
			q.logger.Error("upload_event_malformed", "subject", msg.Subject, "error", err)
			return
		}
		q.logger.Debug("upload_event_received", "document_id", event.DocumentID, "lag", q.now().Sub(event.PublishedAt))
		if err := handler(ctx, event.DocumentID); err != nil {
			q.logger.Error("document_handler_failed", "document_id", event.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
