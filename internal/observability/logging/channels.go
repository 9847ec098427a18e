package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	ChannelUpload         = "upload"
	ChannelClassification = "classification"
	ChannelUserActions    = "user_actions"
	ChannelErrors         = "errors"
)

type ChannelOptions struct {
	Service string
	Level   string
	// Dir receives one append-only <channel>.log file per channel. Empty
	// keeps channels on Stdout only.
	Dir string
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
	// Notifier, when set, is told about every error-level record on the
	// errors channel.
	Notifier Notifier
}

// Channels are the per-concern activity loggers. Every channel also writes to
// the process log stream.
type Channels struct {
	Upload         *slog.Logger
	Classification *slog.Logger
	UserActions    *slog.Logger
	Errors         *slog.Logger

	files  []*os.File
	notify *notifyState
}

func OpenChannels(opts ChannelOptions) (*Channels, error) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	process := slog.NewJSONHandler(stdout, handlerOpts)
	c := &Channels{}

	open := func(name string, extra ...slog.Handler) (*slog.Logger, error) {
		handlers := []slog.Handler{process}
		if opts.Dir != "" {
			f, err := os.OpenFile(filepath.Join(opts.Dir, name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open %s log: %w", name, err)
			}
			c.files = append(c.files, f)
			handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
		}
		handlers = append(handlers, extra...)
		return slog.New(newFanoutHandler(handlers...)).With("service", opts.Service, "channel", name), nil
	}

	var err error
	if c.Upload, err = open(ChannelUpload); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.Classification, err = open(ChannelClassification); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.UserActions, err = open(ChannelUserActions); err != nil {
		_ = c.Close()
		return nil, err
	}

	var extra []slog.Handler
	if opts.Notifier != nil {
		handler := newNotifyHandler(opts.Service, opts.Notifier, slog.New(process))
		c.notify = handler.state
		extra = append(extra, handler)
	}
	if c.Errors, err = open(ChannelErrors, extra...); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close flushes pending notifications and closes channel files.
func (c *Channels) Close() error {
	if c.notify != nil {
		c.notify.close()
	}
	var errs []error
	for _, f := range c.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.files = nil
	return errors.Join(errs...)
}
