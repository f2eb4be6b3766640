package ingest

import (
	"strings"
	"unicode"
)

// Chunk is one window of a source document.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits text into windows of at most Size runes, overlapping by
// Overlap runes. A window ends at the last paragraph or sentence break in
// its second half when there is one.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{Size: size, Overlap: overlap}
}

var breaks = []string{"\n\n", ". ", "? ", "! ", "\n"}

func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(strings.TrimSpace(text))
	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBreak(runes[start:end], c.Size/2); cut > 0 {
			end = start + cut
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: piece})
		}
		if end == len(runes) {
			break
		}
		next := end - c.Overlap
		if next <= start {
			next = end
		}
		// Avoid starting a window in the middle of whitespace.
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		start = next
	}
	return chunks
}

// lastBreak returns the rune offset just after the last break of the most
// preferred kind that lies beyond minOffset, or -1.
func lastBreak(window []rune, minOffset int) int {
	s := string(window)
	for _, b := range breaks {
		if i := strings.LastIndex(s, b); i >= 0 {
			if cut := len([]rune(s[:i])) + len([]rune(b)); cut > minOffset {
				return cut
			}
		}
	}
	return -1
}
