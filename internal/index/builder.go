// Package index builds immutable sparse TF-IDF snapshots of a document corpus.
//
// A build runs in two separated phases. First, W workers tokenize contiguous
// document ranges into private local vocabularies with no shared state.
// Then a single serial merge unions those vocabularies in a fixed order and
// remaps every token into the global id space before the weight model runs.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sparserag/internal/domain"
	"sparserag/internal/embedding/tfidf"
	"sparserag/internal/sparse"
)

// Builder builds Snapshots. A Builder is safe for concurrent use; scratch
// buffers are pooled across builds.
type Builder struct {
	workers    int
	buffers    bufferPool
	generation atomic.Uint64
	logger     *slog.Logger
}

// NewBuilder returns a Builder using the given worker count. A count below 1
// selects runtime.GOMAXPROCS(0).
func NewBuilder(workers int) *Builder {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{
		workers: workers,
		logger:  slog.Default().With("component", "index-builder"),
	}
}

// Workers returns the configured worker count.
func (b *Builder) Workers() int { return b.workers }

// Build indexes docs in order; Index fields are reset to positions. The returned
// Snapshot is complete; on error nothing is returned and nothing that a
// caller previously published is touched.
func (b *Builder) Build(ctx context.Context, docs []domain.Document) (*Snapshot, error) {
	if len(docs) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	start := time.Now()
	docs = slices.Clone(docs)
	for i := range docs {
		docs[i].Index = i
	}

	ranges := partitionRanges(len(docs), b.workers)
	parts := make([]*partition, len(ranges))
	defer func() {
		for _, p := range parts {
			if p != nil {
				b.buffers.put(p.buf)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		g.Go(func() error {
			buf := b.buffers.get()
			p, err := buildPartition(gctx, w, docs, r[0], r[1], buf)
			if err != nil {
				b.buffers.put(buf)
				return err
			}
			parts[w] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, b.buildError(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.Cancelled(err)
	}

	vocab, stream, spans := merge(parts, len(docs))

	docIDs := make([][]int32, len(docs))
	for d, sp := range spans {
		docIDs[d] = stream[sp.Start : sp.Start+sp.Count]
	}
	model, err := tfidf.Fit(docIDs, vocab.Len())
	if err != nil {
		return nil, fmt.Errorf("fitting weight model: %w", err)
	}

	vectors := make([]sparse.Vector, len(docs))
	g, gctx = errgroup.WithContext(ctx)
	for _, r := range ranges {
		g.Go(func() error {
			for d := r[0]; d < r[1]; d++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				vectors[d] = model.Vector(docIDs[d])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, b.buildError(ctx, err)
	}

	snap := &Snapshot{
		generation:  b.generation.Add(1),
		fingerprint: fingerprint(docs),
		builtAt:     time.Now(),
		vocab:       vocab,
		model:       model,
		vectors:     vectors,
		docs:        docs,
		stats: BuildStats{
			Documents:      len(docs),
			VocabularySize: vocab.Len(),
			Tokens:         len(stream),
			Workers:        len(ranges),
			Duration:       time.Since(start),
		},
	}
	b.logger.Info("index built",
		"generation", snap.generation,
		"fingerprint", snap.fingerprint,
		"documents", snap.stats.Documents,
		"vocabulary", snap.stats.VocabularySize,
		"tokens", snap.stats.Tokens,
		"workers", snap.stats.Workers,
		"duration", snap.stats.Duration,
	)
	return snap, nil
}

func (b *Builder) buildError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		b.logger.Warn("index build cancelled", "error", ctxErr)
		return domain.Cancelled(ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Cancelled(err)
	}
	b.logger.Error("index build failed", "error", err)
	return fmt.Errorf("building index: %w", err)
}
