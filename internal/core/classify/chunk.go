package classify

import (
	"strings"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// DetectChunkType tags a retrieval chunk with a coarse document type. It is
// a looser vocabulary than Classify and only labels indexed chunks.
func DetectChunkType(text string) domain.DocumentType {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "present") || strings.Contains(lowered, "absent"):
		return domain.TypeAttendance
	case strings.Contains(lowered, "invoice") ||
		strings.Contains(lowered, "total") ||
		strings.Contains(lowered, "price"):
		return domain.TypeInvoice
	default:
		return domain.TypeUnknown
	}
}
