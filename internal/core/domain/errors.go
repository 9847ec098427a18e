package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrExtractionFailure  = errors.New("extraction failure")
	ErrEmptyContent       = errors.New("empty content")
	ErrAnswerGeneration   = errors.New("answer generation failure")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrOverrideNotAllowed = errors.New("type override not allowed")
	ErrNoDocuments        = errors.New("no documents uploaded")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
