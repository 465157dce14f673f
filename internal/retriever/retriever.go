// Package retriever answers top-k cosine similarity queries against the
// currently published index snapshot.
package retriever

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"sparserag/internal/domain"
	"sparserag/internal/index"
	"sparserag/internal/sparse"
)

// cancelCheckInterval is how many documents are scored between context checks.
const cancelCheckInterval = 1024

// Retriever owns the current snapshot pointer. Publish replaces it whole;
// readers observe either the previous or the new snapshot, never a mix.
type Retriever struct {
	current atomic.Pointer[index.Snapshot]
	logger  *slog.Logger
}

// New returns a Retriever with no snapshot.
func New() *Retriever {
	return &Retriever{
		logger: slog.Default().With("component", "retriever"),
	}
}

// Publish atomically installs snap as the current snapshot.
func (r *Retriever) Publish(snap *index.Snapshot) {
	if snap == nil {
		return
	}
	prev := r.current.Swap(snap)
	var prevGen uint64
	if prev != nil {
		prevGen = prev.Generation()
	}
	r.logger.Info("snapshot published",
		"generation", snap.Generation(),
		"previous_generation", prevGen,
		"documents", snap.Len(),
	)
}

// Snapshot returns the current snapshot, or nil before the first Publish.
func (r *Retriever) Snapshot() *index.Snapshot {
	return r.current.Load()
}

// Retrieve returns up to k documents ranked by descending cosine similarity
// to query, ties broken by ascending document index. k <= 0 yields no hits;
// k beyond the corpus size ranks every document.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievalHit, error) {
	snap := r.current.Load()
	if snap == nil {
		return nil, domain.ErrNotReady
	}
	return Search(ctx, snap, query, k)
}

// Search runs a query against a specific snapshot.
func Search(ctx context.Context, snap *index.Snapshot, query string, k int) ([]domain.RetrievalHit, error) {
	if k <= 0 {
		return []domain.RetrievalHit{}, nil
	}
	start := time.Now()
	k = min(k, snap.Len())
	qv := snap.QueryVector(query)

	top := newTopK(k)
	for d := 0; d < snap.Len(); d++ {
		if d%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, domain.Cancelled(err)
			}
		}
		top.offer(scored{doc: d, score: sparse.Cosine(qv, snap.Vector(d))})
	}

	ranked := top.sorted()
	hits := make([]domain.RetrievalHit, len(ranked))
	for i, c := range ranked {
		doc := snap.Document(c.doc)
		hits[i] = domain.RetrievalHit{
			DocumentIndex: c.doc,
			DocumentID:    doc.ID,
			Score:         c.score,
			Text:          doc.Text,
		}
	}
	slog.Debug("retrieved",
		"component", "retriever",
		"query_terms", qv.Len(),
		"k", k,
		"hits", len(hits),
		"generation", snap.Generation(),
		"latency", time.Since(start),
	)
	return hits, nil
}
