package extractor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

func extractCSV(content []byte) (domain.Content, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("no columns to parse from file")
	}
	return buildTable(records), nil
}
