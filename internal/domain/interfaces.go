package domain

import (
	"context"
	"fmt"
	"time"
)

// Document represents a single corpus entry. Index is its position in load order.
type Document struct {
	Index int
	ID    string
	Title string
	Path  string
	Text  string
}

// Chunk is a semantically meaningful part of a source file. The text corpus
// provider turns every chunk into its own Document.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// RetrievalHit is one ranked document returned for a query.
type RetrievalHit struct {
	DocumentIndex int     `json:"document_index"`
	DocumentID    string  `json:"document_id,omitempty"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}

// GenerationProgress is emitted once per received fragment.
type GenerationProgress struct {
	TokensSoFar int
	Elapsed     time.Duration
	// Target is the requested token budget; zero means none was given.
	Target int
}

// Fraction reports tokens/target clamped to [0, 1]. The second value is false
// when no target budget was requested.
func (p GenerationProgress) Fraction() (float64, bool) {
	if p.Target <= 0 {
		return 0, false
	}
	f := float64(p.TokensSoFar) / float64(p.Target)
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f, true
}

// Rate returns the approximate tokens per second so far.
func (p GenerationProgress) Rate() float64 {
	secs := p.Elapsed.Seconds()
	if secs < 0.001 {
		secs = 0.001
	}
	return float64(p.TokensSoFar) / secs
}

// ETA estimates the time left to reach the target budget at the current rate.
// It is zero when no target was given or the target is already reached.
func (p GenerationProgress) ETA() time.Duration {
	if p.Target <= 0 || p.TokensSoFar >= p.Target {
		return 0
	}
	rate := p.Rate()
	if rate <= 0 {
		return 0
	}
	remaining := float64(p.Target - p.TokensSoFar)
	return time.Duration(remaining / rate * float64(time.Second))
}

// String renders the progress as a single status line, e.g.
// "[generate]  42% | tokens=126 | 31.4 t/s | ETA 5s".
func (p GenerationProgress) String() string {
	f, ok := p.Fraction()
	if !ok {
		return fmt.Sprintf("[generate] tokens=%d | %.1f t/s", p.TokensSoFar, p.Rate())
	}
	return fmt.Sprintf("[generate] %3d%% | tokens=%d | %.1f t/s | ETA %ds",
		int(f*100), p.TokensSoFar, p.Rate(), int(p.ETA().Round(time.Second)/time.Second))
}

// ProgressFunc receives generation progress notifications in fragment order.
type ProgressFunc func(GenerationProgress)

// CorpusProvider supplies the ordered document sequence.
type CorpusProvider interface {
	Load(ctx context.Context) ([]Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// GenerateRequest is one outbound call to the generation backend.
type GenerateRequest struct {
	Prompt string
	// TargetTokens is the optional token budget; zero means unset.
	TargetTokens int
	// Model is the optional model identifier; empty selects the backend default.
	Model string
}
