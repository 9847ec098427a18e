package routing

import (
	"strings"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// Render converts content into the text embedded in a prompt.
func Render(content domain.Content) (domain.ContextKind, string) {
	switch c := content.(type) {
	case domain.Table:
		return domain.ContextTable, RenderTable(c)
	case domain.Text:
		return domain.ContextText, c.Body
	default:
		return domain.ContextText, ""
	}
}

// RenderTable renders a table as a Markdown pipe table.
func RenderTable(t domain.Table) string {
	if len(t.Columns) == 0 {
		return ""
	}

	var b strings.Builder
	writeRow(&b, t.Columns)
	b.WriteString("|")
	for range t.Columns {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		copy(cells, row)
		writeRow(&b, cells)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(cell))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func escapeCell(cell string) string {
	return cellEscaper.Replace(strings.TrimSpace(cell))
}
