package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sparserag/internal/cache"
	"sparserag/internal/config"
	"sparserag/internal/corpus"
	"sparserag/internal/generation"
	"sparserag/internal/index"
	"sparserag/internal/metrics"
	"sparserag/internal/resilience"
	"sparserag/internal/service"
	"sparserag/internal/summarizer"
)

// app owns the service and the optional cache and metrics server behind it.
type app struct {
	svc     *service.RAGService
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	provider, err := corpus.New(corpus.Options{
		Path:              cfg.Corpus.Path,
		Format:            cfg.Corpus.Format,
		SentencesPerChunk: cfg.Corpus.SentencesPerChunk,
		OverlapSentences:  cfg.Corpus.OverlapSentences,
	})
	if err != nil {
		return nil, &configError{err: err}
	}

	client := generation.NewOllamaClient(
		generation.WithBaseURL(cfg.Generator.BaseURL),
		generation.WithModel(cfg.Generator.Model),
		generation.WithTimeout(time.Duration(cfg.Generator.TimeoutSecs)*time.Second),
		generation.WithRetry(resilience.RetryPolicy{MaxAttempts: cfg.Generator.MaxAttempts}),
	)

	a := &app{}
	opts := []service.Option{
		service.WithSummarizer(summarizer.NewFrequencySummarizer(), cfg.Summarizer.MaxSentences),
		service.WithDefaults(cfg.Retriever.TopK, cfg.Generator.NumPredict),
	}

	if cfg.Cache.Enabled {
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			// retrieval works without the cache
			slog.Warn("retrieval cache disabled", "error", err)
		} else {
			qc := cache.NewQueryCache(store, time.Duration(cfg.Cache.TTLSecs)*time.Second)
			opts = append(opts, service.WithCache(qc))
			a.closers = append(a.closers, func(context.Context) error { return qc.Close() })
		}
	}

	if cfg.Metrics.Enabled {
		m := metrics.New(prometheus.DefaultRegisterer)
		opts = append(opts, service.WithMetrics(m))
		a.closers = append(a.closers, metrics.StartServer(cfg.Metrics.Port, m))
	}

	a.svc = service.NewRAGService(provider, index.NewBuilder(cfg.Index.Workers), generation.NewConsumer(client), opts...)
	return a, nil
}

// prepare loads the corpus and builds the first index.
func (a *app) prepare(ctx context.Context) (index.BuildStats, error) {
	if _, err := a.svc.LoadCorpus(ctx); err != nil {
		return index.BuildStats{}, err
	}
	return a.svc.BuildIndex(ctx)
}

func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}
