package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparserag/internal/domain"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "  ", nil},
		{"single no punctuation", "just words", []string{"just words"}},
		{"several", "One. Two!  Three? ", []string{"One.", "Two!", "Three?"}},
		{"trailing fragment", "Done. and more", []string{"Done.", "and more"}},
		{"ellipsis", "Wait... what?", []string{"Wait...", "what?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestSentenceChunker_Overlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks, err := c.Chunk(domain.Document{ID: "doc", Text: "A. B. C. D."})
	require.NoError(t, err)

	var texts, ids []string
	for _, ch := range chunks {
		texts = append(texts, ch.Text)
		ids = append(ids, ch.ChunkID)
		assert.Equal(t, "doc", ch.DocumentID)
	}
	assert.Equal(t, []string{"A. B.", "B. C.", "C. D."}, texts)
	assert.Equal(t, []string{"doc:0", "doc:1", "doc:2"}, ids)
}

func TestSentenceChunker_NoOverlap(t *testing.T) {
	chunks, err := NewSentenceChunker(2, 0).Chunk(domain.Document{ID: "d", Text: "A. B. C."})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "C.", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestSentenceChunker_OverlapClamped(t *testing.T) {
	chunks, err := NewSentenceChunker(2, 5).Chunk(domain.Document{ID: "d", Text: "A. B. C."})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestSentenceChunker_Empty(t *testing.T) {
	chunks, err := NewSentenceChunker(3, 1).Chunk(domain.Document{ID: "d", Text: "\n\t"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
