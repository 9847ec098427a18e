// Package classify assigns document-type labels to extracted content using
// header and keyword heuristics. Classification never fails: content that
// matches nothing is labelled unknown.
package classify

import (
	"strings"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

var attendanceKeywords = []string{
	"student", "present", "absent", "p", "a", "attendance", "roll", "name",
	"employee", "reg no", "register", "roll no", "rollno", "enrollment",
	"attended", "total classes", "attendance %", "attendance%", "attn",
	"att.", "attd", "attnd", "attendence",
}

var (
	invoiceItemHeaders   = []string{"item", "product", "description"}
	invoicePriceHeaders  = []string{"price", "cost"}
	invoiceSampleMarkers = []string{"rs", "₹", "$", "price", "total"}
)

const (
	minAttendanceKeywords = 2
	minAttendanceColumns  = 3
	minAttendanceRatio    = 0.5
	minAttendanceRows     = 2
	invoiceSampleRows     = 10
)

// Classify labels content as attendance, invoice or unknown.
func Classify(content domain.Content) domain.DocumentType {
	switch c := content.(type) {
	case domain.Table:
		return classifyTable(c)
	case domain.Text:
		return classifyText(c.Body)
	default:
		return domain.TypeUnknown
	}
}

func classifyTable(t domain.Table) domain.DocumentType {
	rows := t.NonBlankRows()
	headers := normalizeHeaders(t.Columns)

	matched := MatchedAttendanceKeywords(headers)
	columns := len(headers)
	if len(matched) >= minAttendanceKeywords &&
		columns >= minAttendanceColumns &&
		float64(len(matched))/float64(columns) >= minAttendanceRatio &&
		len(rows) >= minAttendanceRows {
		return domain.TypeAttendance
	}

	if hasAnyExact(headers, invoiceItemHeaders) &&
		(hasAnySubstring(headers, invoicePriceHeaders) || sampleHasMarker(rows, invoiceSampleRows)) {
		return domain.TypeInvoice
	}
	return domain.TypeUnknown
}

// classifyText is deliberately weaker than the table path: plain substring
// containment with invoice taking precedence.
func classifyText(body string) domain.DocumentType {
	lowered := strings.ToLower(body)
	switch {
	case strings.Contains(lowered, "invoice"):
		return domain.TypeInvoice
	case strings.Contains(lowered, "attendance"):
		return domain.TypeAttendance
	default:
		return domain.TypeUnknown
	}
}

// MatchedAttendanceKeywords returns the distinct vocabulary entries found as
// substrings of the given normalized headers, in vocabulary order.
func MatchedAttendanceKeywords(headers []string) []string {
	out := make([]string, 0, len(attendanceKeywords))
	for _, key := range attendanceKeywords {
		for _, header := range headers {
			if strings.Contains(header, key) {
				out = append(out, key)
				break
			}
		}
	}
	return out
}

func normalizeHeaders(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = strings.ToLower(strings.TrimSpace(col))
	}
	return out
}

func hasAnyExact(headers, candidates []string) bool {
	for _, header := range headers {
		for _, candidate := range candidates {
			if header == candidate {
				return true
			}
		}
	}
	return false
}

func hasAnySubstring(headers, needles []string) bool {
	for _, header := range headers {
		for _, needle := range needles {
			if strings.Contains(header, needle) {
				return true
			}
		}
	}
	return false
}

func sampleHasMarker(rows [][]string, limit int) bool {
	if len(rows) > limit {
		rows = rows[:limit]
	}
	cells := make([]string, 0, len(rows)*4)
	for _, row := range rows {
		for _, cell := range row {
			cells = append(cells, strings.ToLower(cell))
		}
	}
	sample := strings.Join(cells, " ")
	for _, marker := range invoiceSampleMarkers {
		if strings.Contains(sample, marker) {
			return true
		}
	}
	return false
}
