package corpus

import (
	"fmt"

	"sparserag/internal/chunker"
	"sparserag/internal/domain"
)

const (
	FormatJSONL = "jsonl"
	FormatText  = "text"
)

// Options selects and configures a provider.
type Options struct {
	Path              string
	Format            string
	SentencesPerChunk int
	OverlapSentences  int
}

// New returns the provider for opts.Format. An empty format means JSONL.
func New(opts Options) (domain.CorpusProvider, error) {
	switch opts.Format {
	case "", FormatJSONL:
		return NewJSONLProvider(opts.Path), nil
	case FormatText:
		return NewTextProvider(opts.Path, chunker.NewSentenceChunker(opts.SentencesPerChunk, opts.OverlapSentences)), nil
	default:
		return nil, fmt.Errorf("unknown corpus format %q", opts.Format)
	}
}
