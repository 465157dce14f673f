package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"sparserag/internal/domain"
	"sparserag/internal/tokenizer"
)

const keyPrefix = "rag:retrieve:"

// QueryCache stores ranked hits per (scope, normalised query, k). The scope
// names the index contents the hits were ranked against, see Scope.
// Concurrent misses for the same key share one computation.
type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func NewQueryCache(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get looks up a cached result. Store failures are logged and reported as
// a miss.
func (c *QueryCache) Get(ctx context.Context, scope, query string, k int) ([]domain.RetrievalHit, bool) {
	key := Key(scope, query, k)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var hits []domain.RetrievalHit
	if err := json.Unmarshal([]byte(data), &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return hits, true
}

// Set stores hits. Failures are logged, never returned.
func (c *QueryCache) Set(ctx context.Context, scope, query string, k int, hits []domain.RetrievalHit) {
	key := Key(scope, query, k)
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached hits, or runs compute once per key and
// caches its result. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	scope string,
	query string,
	k int,
	compute func() ([]domain.RetrievalHit, error),
) ([]domain.RetrievalHit, bool, error) {
	if hits, ok := c.Get(ctx, scope, query, k); ok {
		return hits, true, nil
	}
	v, err, _ := c.group.Do(Key(scope, query, k), func() (any, error) {
		hits, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, scope, query, k, hits)
		return hits, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]domain.RetrievalHit), false, nil
}

// Invalidate drops every cached retrieval.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.DeleteByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close releases the store.
func (c *QueryCache) Close() error {
	return c.store.Close()
}

// Scope identifies an index for caching. The fingerprint covers the indexed
// documents, so entries written by another process over a different corpus
// never match even when its generation counter produced the same number.
func Scope(generation uint64, fingerprint string) string {
	return fmt.Sprintf("%d-%s", generation, fingerprint)
}

// Key builds the cache key. Queries that tokenize to the same bag of tokens
// share a key, since they produce the same query vector.
func Key(scope, query string, k int) string {
	raw := fmt.Sprintf("%s|k=%d", normalizeQuery(query), k)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, scope, sum[:16])
}

func normalizeQuery(query string) string {
	toks := tokenizer.Tokenize(query)
	slices.Sort(toks)
	return strings.Join(toks, " ")
}
