package logging

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"time"
)

// Notifier delivers an alert outside the log stream.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SMTPNotifier mails alerts through a plain SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

func (n *SMTPNotifier) Notify(_ context.Context, subject, body string) error {
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := "From: " + n.cfg.From + "\r\n" +
		"To: " + strings.Join(n.cfg.To, ", ") + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n"
	if err := n.send(addr, auth, n.cfg.From, n.cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type alert struct {
	subject string
	body    string
}

// notifyHandler turns error-level records into alerts. Delivery happens on a
// background goroutine; when the queue is full the alert is dropped.
type notifyHandler struct {
	state *notifyState
	attrs []slog.Attr
	group string
}

type notifyState struct {
	service  string
	notifier Notifier
	queue    chan alert
	done     chan struct{}
	once     sync.Once
	fallback *slog.Logger
}

func newNotifyHandler(service string, notifier Notifier, fallback *slog.Logger) *notifyHandler {
	state := &notifyState{
		service:  service,
		notifier: notifier,
		queue:    make(chan alert, 32),
		done:     make(chan struct{}),
		fallback: fallback,
	}
	go state.loop()
	return &notifyHandler{state: state}
}

func (s *notifyState) loop() {
	defer close(s.done)
	for a := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.notifier.Notify(ctx, a.subject, a.body); err != nil && s.fallback != nil {
			s.fallback.Warn("error_notification_failed", "error", err)
		}
		cancel()
	}
}

// close stops accepting alerts and waits for queued ones to be sent.
func (s *notifyState) close() {
	s.once.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (h *notifyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *notifyHandler) Handle(_ context.Context, record slog.Record) error {
	var body strings.Builder
	fmt.Fprintf(&body, "time: %s\nlevel: %s\nmessage: %s\n", record.Time.UTC().Format(time.RFC3339), record.Level, record.Message)
	for _, attr := range h.attrs {
		fmt.Fprintf(&body, "%s: %s\n", attr.Key, attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		key := attr.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&body, "%s: %s\n", key, attr.Value)
		return true
	})

	a := alert{
		subject: fmt.Sprintf("[%s] %s", h.state.service, record.Message),
		body:    body.String(),
	}
	defer func() {
		// Sending on a closed queue after shutdown only loses the alert.
		_ = recover()
	}()
	select {
	case h.state.queue <- a:
	default:
	}
	return nil
}

func (h *notifyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *notifyHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group == "" {
		next.group = name
	} else {
		next.group += "." + name
	}
	return &next
}
