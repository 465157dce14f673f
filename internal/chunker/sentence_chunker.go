// Package chunker splits plain text into overlapping windows of sentences.
package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"sparserag/internal/domain"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SplitSentences returns the trimmed sentences of text. Trailing text with
// no terminal punctuation is kept as a final sentence.
func SplitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// SentenceChunker groups sentences into chunks of a fixed size, each chunk
// repeating the last overlap sentences of the previous one.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker defaults to 5 sentences per chunk. An overlap that is
// not smaller than the chunk size is reduced so chunking always advances.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

// Chunk splits document.Text. Chunk ids are "<document id>:<n>".
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := SplitSentences(document.Text)
	if len(sentences) == 0 {
		return nil, nil
	}
	step := c.sentencesPerChunk - c.overlapSentences

	var chunks []domain.Chunk
	for start := 0; ; start += step {
		end := min(start+c.sentencesPerChunk, len(sentences))
		n := len(chunks)
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(n),
			Text:       strings.Join(sentences[start:end], " "),
			Index:      n,
		})
		if end == len(sentences) {
			return chunks, nil
		}
	}
}
