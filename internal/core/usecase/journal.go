package usecase

import (
	"io"
	"log/slog"
)

// Journal holds the per-concern loggers use cases write activity records to.
// Nil loggers discard.
type Journal struct {
	Upload         *slog.Logger
	Classification *slog.Logger
	UserActions    *slog.Logger
	Errors         *slog.Logger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (j Journal) normalize() Journal {
	if j.Upload == nil {
		j.Upload = discardLogger
	}
	if j.Classification == nil {
		j.Classification = discardLogger
	}
	if j.UserActions == nil {
		j.UserActions = discardLogger
	}
	if j.Errors == nil {
		j.Errors = discardLogger
	}
	return j
}
