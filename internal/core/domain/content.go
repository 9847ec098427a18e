package domain

import "strings"

type ContentKind string

const (
	ContentKindTable ContentKind = "table"
	ContentKindText  ContentKind = "text"
)

// Content is what the extractor produces for one upload: either a Table or a Text.
type Content interface {
	Kind() ContentKind
	isContent()
}

// Table holds spreadsheet-like data. Every row has len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (Table) Kind() ContentKind { return ContentKindTable }
func (Table) isContent()        {}

// NonBlankRows returns the rows that have at least one non-blank cell.
func (t Table) NonBlankRows() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Text holds extracted document text, pages separated by newlines.
type Text struct {
	Body string `json:"body"`
}

func (Text) Kind() ContentKind { return ContentKindText }
func (Text) isContent()        {}

// IsEmpty reports whether content carries no data: a table without rows
// or text that is blank after trimming. A nil content is empty.
func IsEmpty(c Content) bool {
	switch v := c.(type) {
	case Table:
		return len(v.Rows) == 0
	case Text:
		return strings.TrimSpace(v.Body) == ""
	default:
		return true
	}
}
