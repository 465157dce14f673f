package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
corpus:
  path: docs/
  format: text
index:
  workers: 4
generator:
  model: tiny
cache:
  enabled: true
  addr: redis:6379
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docs/", cfg.Corpus.Path)
	assert.Equal(t, "text", cfg.Corpus.Format)
	assert.Equal(t, 5, cfg.Corpus.SentencesPerChunk)
	assert.Equal(t, 4, cfg.Index.Workers)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.Equal(t, "tiny", cfg.Generator.Model)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Generator.BaseURL)
	assert.Equal(t, 300, cfg.Generator.NumPredict)
	assert.Equal(t, 600, cfg.Cache.TTLSecs)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corpus: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retriever.TopK = 7
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestApplyEnv(t *testing.T) {
	cfg := defaultConfig()
	err := ApplyEnv(cfg, env(map[string]string{
		"RAG_CORPUS_PATH":   "/data/corpus.jsonl",
		"RAG_INDEX_WORKERS": "8",
		"RAG_TOP_K":         " 5 ",
		"RAG_OLLAMA_URL":    "http://gpu:11434",
		"RAG_MODEL":         "llama3",
		"NUM_PREDICT":       "128",
		"RAG_LOG_LEVEL":     "debug",
		"RAG_REDIS_ADDR":    "cache:6379",
		"RAG_LOG_FORMAT":    "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/data/corpus.jsonl", cfg.Corpus.Path)
	assert.Equal(t, 8, cfg.Index.Workers)
	assert.Equal(t, 5, cfg.Retriever.TopK)
	assert.Equal(t, "http://gpu:11434", cfg.Generator.BaseURL)
	assert.Equal(t, "llama3", cfg.Generator.Model)
	assert.Equal(t, 128, cfg.Generator.NumPredict)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "cache:6379", cfg.Cache.Addr)
}

func TestApplyEnv_BadInteger(t *testing.T) {
	err := ApplyEnv(defaultConfig(), env(map[string]string{"RAG_TOP_K": "three"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAG_TOP_K")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"no corpus", func(c *AppConfig) { c.Corpus.Path = "" }, "corpus.path"},
		{"bad format", func(c *AppConfig) { c.Corpus.Format = "csv" }, "corpus.format"},
		{"negative workers", func(c *AppConfig) { c.Index.Workers = -1 }, "index.workers"},
		{"negative top k", func(c *AppConfig) { c.Retriever.TopK = -1 }, "top_k"},
		{"cache without addr", func(c *AppConfig) { c.Cache.Enabled = true; c.Cache.Addr = "" }, "cache.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolve_ExplicitMissing(t *testing.T) {
	_, _, err := Resolve(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolve_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retriever:\n  top_k: 9\n"), 0o644))
	t.Setenv("RAG_MODEL", "from-env")

	cfg, got, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, 9, cfg.Retriever.TopK)
	assert.Equal(t, "from-env", cfg.Generator.Model)
}
