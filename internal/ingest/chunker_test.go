package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_ShortText(t *testing.T) {
	chunks := NewChunker(500, 50).Split("  Refunds take five days.  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Index: 0, Text: "Refunds take five days."}, chunks[0])
	assert.Empty(t, NewChunker(500, 50).Split(" \n "))
}

func TestChunker_PrefersSentenceBreaks(t *testing.T) {
	sentence := "Support is available on weekdays from nine to five. "
	text := strings.Repeat(sentence, 20)
	chunks := NewChunker(200, 20).Split(text)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 200)
		if i < len(chunks)-1 {
			assert.True(t, strings.HasSuffix(ch.Text, "."), "chunk %d should end on a sentence: %q", i, ch.Text)
		}
	}
}

func TestChunker_HardSplitWithOverlap(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := NewChunker(100, 10).Split(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Text, 100)
	assert.Len(t, chunks[1].Text, 100)
	assert.Len(t, chunks[2].Text, 70)
}

func TestChunker_ParagraphBreakWins(t *testing.T) {
	para := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 10) + "\n\n" + strings.Repeat("c", 60)
	chunks := NewChunker(100, 0).Split(para)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "b"))
	assert.Equal(t, strings.Repeat("c", 60), chunks[1].Text)
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, 500, c.Size)
	assert.Equal(t, 0, c.Overlap)
	assert.Equal(t, 0, NewChunker(10, 10).Overlap)
}
