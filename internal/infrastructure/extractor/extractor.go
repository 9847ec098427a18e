// Package extractor turns uploaded CSV, XLSX and PDF files into table or
// text content.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

const defaultMaxBytes = 32 << 20

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// SupportedFormats lists the accepted upload formats.
func SupportedFormats() []Format {
	return []Format{FormatCSV, FormatXLSX, FormatPDF}
}

type Extractor struct {
	maxBytes int64
}

func New(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

// Detect maps a file name to its format by suffix, case-insensitively.
func Detect(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "detect format", fmt.Errorf("%q", filename))
	}
}

// Extract reads body once, fully, and parses it according to the file suffix.
func (e *Extractor) Extract(ctx context.Context, filename string, body io.Reader) (domain.Content, error) {
	format, err := Detect(filename)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract", errors.New("empty upload body"))
	}

	raw, err := io.ReadAll(io.LimitReader(body, e.maxBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailure, "read upload", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload",
			fmt.Errorf("file too large: more than %d bytes", e.maxBytes))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content domain.Content
	switch format {
	case FormatCSV:
		content, err = extractCSV(raw)
	case FormatXLSX:
		content, err = extractXLSX(raw)
	case FormatPDF:
		content, err = extractPDF(raw)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailure, "extract "+string(format), err)
	}
	return content, nil
}

// buildTable treats the first record as header and aligns every data row
// to the header width.
func buildTable(records [][]string) domain.Table {
	if len(records) == 0 {
		return domain.Table{Columns: []string{}, Rows: [][]string{}}
	}

	header := records[0]
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		columns[i] = name
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(columns))
		copy(row, record)
		rows = append(rows, row)
	}
	return domain.Table{Columns: columns, Rows: rows}
}
