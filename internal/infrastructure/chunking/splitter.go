package chunking

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Splitter cuts text into windows of at most ChunkSize runes that overlap by
// Overlap runes. Window ends are pulled back to the last paragraph break, line
// break or space inside the window when one exists past the overlap.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.boundary(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *Splitter) boundary(runes []rune, start, end int) int {
	floor := start + s.Overlap + 1
	for _, sep := range []func(i int) bool{
		func(i int) bool { return runes[i] == '\n' && i > 0 && runes[i-1] == '\n' },
		func(i int) bool { return runes[i] == '\n' },
		func(i int) bool { return unicode.IsSpace(runes[i]) },
	} {
		for i := end - 1; i >= floor; i-- {
			if sep(i) {
				return i + 1
			}
		}
	}
	return end
}
