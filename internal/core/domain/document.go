package domain

import (
	"strings"
	"time"
)

type DocumentType string

const (
	TypeAttendance  DocumentType = "attendance"
	TypeInvoice     DocumentType = "invoice"
	TypeUnknown     DocumentType = "unknown"
	TypeEmpty       DocumentType = "empty"
	TypeUnsupported DocumentType = "unsupported"
)

// ParseDocumentType maps a user-supplied label to a DocumentType. Built-in
// labels are matched case-insensitively, anything else is kept as a custom type.
func ParseDocumentType(label string) DocumentType {
	trimmed := strings.TrimSpace(label)
	switch DocumentType(strings.ToLower(trimmed)) {
	case TypeAttendance, TypeInvoice, TypeUnknown, TypeEmpty, TypeUnsupported:
		return DocumentType(strings.ToLower(trimmed))
	default:
		return DocumentType(trimmed)
	}
}

// IsReserved reports labels a user cannot assign manually.
func (t DocumentType) IsReserved() bool {
	switch t {
	case TypeUnknown, TypeEmpty, TypeUnsupported, "":
		return true
	default:
		return false
	}
}

// Answerable reports whether documents of this type contribute context to
// multi-document questions.
func (t DocumentType) Answerable() bool {
	return t != TypeEmpty && t != TypeUnsupported
}

type TypeSource string

const (
	TypeSourceAuto   TypeSource = "auto"
	TypeSourceManual TypeSource = "manual"
)

type IndexStatus string

const (
	IndexStatusSkipped  IndexStatus = "skipped"
	IndexStatusQueued   IndexStatus = "queued"
	IndexStatusIndexing IndexStatus = "indexing"
	IndexStatusReady    IndexStatus = "ready"
	IndexStatusFailed   IndexStatus = "failed"
)

type Document struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Filename    string       `json:"filename"`
	ContentKind ContentKind  `json:"content_kind"`
	Type        DocumentType `json:"type"`
	TypeSource  TypeSource   `json:"type_source"`
	StoragePath string       `json:"storage_path"`
	Size        int64        `json:"size"`
	IndexStatus IndexStatus  `json:"index_status"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Content Content `json:"-"`
}

// CanOverride reports whether the document type may still be replaced manually.
func (d *Document) CanOverride() bool {
	return d.Type == TypeUnknown && d.TypeSource == TypeSourceAuto
}

// ClassificationRecord is the ledger view of one classification decision.
type ClassificationRecord struct {
	DocumentID string       `json:"document_id"`
	Type       DocumentType `json:"type"`
	Source     TypeSource   `json:"source"`
	At         time.Time    `json:"at"`
}
