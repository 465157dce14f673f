// Package service ties the corpus, index, retriever and generation backend
// together behind the load / build / retrieve / generate / ask operations.
// Every error it returns is a *domain.PhaseError naming the failed step.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sparserag/internal/cache"
	"sparserag/internal/domain"
	"sparserag/internal/generation"
	"sparserag/internal/index"
	"sparserag/internal/metrics"
	"sparserag/internal/retriever"
)

// Generator runs one streaming generation call.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerateRequest, onProgress domain.ProgressFunc) (generation.Result, error)
}

// RetrievalCache memoises ranked hits per index scope (see cache.Scope).
type RetrievalCache interface {
	GetOrCompute(ctx context.Context, scope, query string, k int,
		compute func() ([]domain.RetrievalHit, error)) ([]domain.RetrievalHit, bool, error)
}

// Option configures a RAGService.
type Option func(*RAGService)

func WithSummarizer(s domain.Summarizer, maxSentences int) Option {
	return func(r *RAGService) {
		r.summarizer = s
		r.summaryMaxSentences = maxSentences
	}
}

func WithCache(c RetrievalCache) Option {
	return func(r *RAGService) { r.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *RAGService) { r.metrics = m }
}

// WithDefaults sets the top-k and token budget used by Ask when the call
// does not specify them.
func WithDefaults(topK, numPredict int) Option {
	return func(r *RAGService) {
		r.topK = topK
		r.numPredict = numPredict
	}
}

// RAGService is safe for concurrent use. Builds are serialised; queries run
// concurrently against whichever snapshot is published.
type RAGService struct {
	provider  domain.CorpusProvider
	builder   *index.Builder
	retriever *retriever.Retriever
	generator Generator

	summarizer          domain.Summarizer
	summaryMaxSentences int
	cache               RetrievalCache
	metrics             *metrics.Metrics
	topK                int
	numPredict          int
	logger              *slog.Logger

	buildMu sync.Mutex

	mu      sync.RWMutex
	docs    []domain.Document
	summary string
}

func NewRAGService(provider domain.CorpusProvider, builder *index.Builder, generator Generator, opts ...Option) *RAGService {
	s := &RAGService{
		provider:   provider,
		builder:    builder,
		retriever:  retriever.New(),
		generator:  generator,
		topK:       3,
		numPredict: 300,
		logger:     slog.Default().With("component", "rag-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadCorpus replaces the loaded documents with a fresh read of the corpus.
// On failure the previously loaded documents stay in place.
func (s *RAGService) LoadCorpus(ctx context.Context) (int, error) {
	docs, err := s.provider.Load(ctx)
	if err != nil {
		return 0, domain.WrapPhase(domain.PhaseLoad, err)
	}
	summary := ""
	if s.summarizer != nil && len(docs) > 0 {
		var all strings.Builder
		for _, d := range docs {
			all.WriteString(d.Text)
			all.WriteString("\n")
		}
		if summary, err = s.summarizer.Summarize(all.String(), s.summaryMaxSentences); err != nil {
			s.logger.Warn("summarizing corpus failed", "error", err)
			summary = ""
		}
	}

	s.mu.Lock()
	s.docs = docs
	s.summary = summary
	s.mu.Unlock()
	return len(docs), nil
}

// BuildIndex indexes the loaded documents and publishes the new snapshot.
// A failed or cancelled build leaves the previous snapshot serving.
func (s *RAGService) BuildIndex(ctx context.Context) (index.BuildStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.RLock()
	docs := s.docs
	s.mu.RUnlock()

	start := time.Now()
	snap, err := s.builder.Build(ctx, docs)
	if err != nil {
		s.metrics.BuildOutcome(err, time.Since(start), 0, 0, 0)
		return index.BuildStats{}, domain.WrapPhase(domain.PhaseBuild, err)
	}
	s.retriever.Publish(snap)
	stats := snap.Stats()
	s.metrics.BuildOutcome(nil, stats.Duration, stats.Documents, stats.VocabularySize, snap.Generation())
	return stats, nil
}

// Retrieve ranks the indexed documents against query.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalHit, error) {
	start := time.Now()
	hits, cacheStatus, err := s.retrieve(ctx, query, k)
	s.metrics.QueryOutcome(err, time.Since(start), cacheStatus, len(hits))
	if err != nil {
		return nil, domain.WrapPhase(domain.PhaseRetrieve, err)
	}
	return hits, nil
}

func (s *RAGService) retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalHit, string, error) {
	snap := s.retriever.Snapshot()
	if snap == nil {
		return nil, "disabled", domain.ErrNotReady
	}
	if s.cache == nil || k <= 0 {
		hits, err := retriever.Search(ctx, snap, query, k)
		return hits, "disabled", err
	}
	scope := cache.Scope(snap.Generation(), snap.Fingerprint())
	hits, cached, err := s.cache.GetOrCompute(ctx, scope, query, k, func() ([]domain.RetrievalHit, error) {
		return retriever.Search(ctx, snap, query, k)
	})
	if cached {
		return hits, "hit", err
	}
	return hits, "miss", err
}

// Generate streams a completion for prompt. targetTokens <= 0 sends no
// budget to the backend.
func (s *RAGService) Generate(ctx context.Context, prompt string, targetTokens int, onProgress domain.ProgressFunc) (string, error) {
	res, err := s.generate(ctx, domain.GenerateRequest{Prompt: prompt, TargetTokens: targetTokens}, onProgress)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (s *RAGService) generate(ctx context.Context, req domain.GenerateRequest, onProgress domain.ProgressFunc) (generation.Result, error) {
	if s.retriever.Snapshot() == nil {
		return generation.Result{}, domain.WrapPhase(domain.PhaseGenerate, domain.ErrNotReady)
	}
	var tokens int
	progress := func(p domain.GenerationProgress) {
		tokens = p.TokensSoFar
		if onProgress != nil {
			onProgress(p)
		}
	}
	res, err := s.generator.Generate(ctx, req, progress)
	s.metrics.GenerationOutcome(err, res.Elapsed, tokens)
	if err != nil {
		return generation.Result{}, domain.WrapPhase(domain.PhaseGenerate, err)
	}
	return res, nil
}

// AskOptions overrides the service defaults for one Ask call.
type AskOptions struct {
	K            int
	TargetTokens int
	Model        string
}

// Answer is the outcome of Ask.
type Answer struct {
	Text   string
	Hits   []domain.RetrievalHit
	Prompt string
	Tokens int
}

// Ask retrieves context for question, builds the prompt and streams the
// answer.
func (s *RAGService) Ask(ctx context.Context, question string, opts AskOptions, onProgress domain.ProgressFunc) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, domain.WrapPhase(domain.PhaseRetrieve, errors.New("empty question"))
	}
	k := opts.K
	if k <= 0 {
		k = s.topK
	}
	target := opts.TargetTokens
	if target <= 0 {
		target = s.numPredict
	}
	hits, err := s.Retrieve(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}
	prompt := BuildPrompt(question, hits)
	res, err := s.generate(ctx, domain.GenerateRequest{Prompt: prompt, TargetTokens: target, Model: opts.Model}, onProgress)
	if err != nil {
		return Answer{Hits: hits, Prompt: prompt}, err
	}
	return Answer{Text: res.Text, Hits: hits, Prompt: prompt, Tokens: res.Tokens}, nil
}

// Summary returns the summary computed at the last successful load.
func (s *RAGService) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Documents returns the number of loaded documents.
func (s *RAGService) Documents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Snapshot returns the published index snapshot, or nil before the first
// successful build.
func (s *RAGService) Snapshot() *index.Snapshot {
	return s.retriever.Snapshot()
}

// TopK returns the default number of hits.
func (s *RAGService) TopK() int { return s.topK }
