package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// extractPDF concatenates the text of every page in order, with a newline
// after each page including the last one.
func extractPDF(content []byte) (out domain.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if !page.V.IsNull() {
			text, err := page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("extract page %d: %w", i, err)
			}
			buf.WriteString(text)
		}
		buf.WriteByte('\n')
	}
	return domain.Text{Body: buf.String()}, nil
}
