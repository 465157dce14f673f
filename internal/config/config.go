// Package config loads the YAML application config, fills defaults and
// applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CorpusConfig locates the documents to index.
type CorpusConfig struct {
	Path              string `yaml:"path"`
	Format            string `yaml:"format"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// IndexConfig tunes the parallel index build. Zero workers means one per CPU.
type IndexConfig struct {
	Workers int `yaml:"workers"`
}

type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// GeneratorConfig points at the streaming generation backend.
type GeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	NumPredict  int    `yaml:"num_predict"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// SummarizerConfig configures the corpus summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// CacheConfig enables the Redis retrieval cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// MetricsConfig enables the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig configures slog. File is only used by the interactive UI,
// which cannot share the terminal with log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Index      IndexConfig      `yaml:"index"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Resolve loads explicit when set, else falls back to LoadDefault, then
// applies environment overrides and validates the result.
func Resolve(explicit string) (*AppConfig, string, error) {
	var (
		cfg  *AppConfig
		path string
		err  error
	)
	if explicit != "" {
		if _, statErr := os.Stat(explicit); statErr != nil {
			return nil, explicit, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = Load(explicit)
		path = explicit
	} else {
		cfg, path, err = LoadDefault()
	}
	if err != nil {
		return nil, path, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides fields from RAG_* variables (and NUM_PREDICT).
func ApplyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str("RAG_CORPUS_PATH", &cfg.Corpus.Path)
	str("RAG_OLLAMA_URL", &cfg.Generator.BaseURL)
	str("RAG_MODEL", &cfg.Generator.Model)
	str("RAG_LOG_LEVEL", &cfg.Logging.Level)
	str("RAG_LOG_FORMAT", &cfg.Logging.Format)
	if v, ok := lookup("RAG_REDIS_ADDR"); ok && v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	for key, dst := range map[string]*int{
		"RAG_INDEX_WORKERS": &cfg.Index.Workers,
		"RAG_TOP_K":         &cfg.Retriever.TopK,
		"NUM_PREDICT":       &cfg.Generator.NumPredict,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects values no component can work with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Corpus.Path == "" {
		errs = append(errs, errors.New("corpus.path is required"))
	}
	switch c.Corpus.Format {
	case "jsonl", "text":
	default:
		errs = append(errs, fmt.Errorf("corpus.format %q: want jsonl or text", c.Corpus.Format))
	}
	if c.Index.Workers < 0 {
		errs = append(errs, fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers))
	}
	if c.Retriever.TopK < 0 {
		errs = append(errs, fmt.Errorf("retriever.top_k must not be negative, got %d", c.Retriever.TopK))
	}
	if c.Generator.NumPredict < 0 {
		errs = append(errs, fmt.Errorf("generator.num_predict must not be negative, got %d", c.Generator.NumPredict))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache.addr is required when the cache is enabled"))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Corpus: CorpusConfig{
			Path:              filepath.Join("data", "corpus.jsonl"),
			Format:            "jsonl",
			SentencesPerChunk: 5,
			OverlapSentences:  1,
		},
		Retriever: RetrieverConfig{TopK: 3},
		Generator: GeneratorConfig{
			BaseURL:     "http://127.0.0.1:11434",
			Model:       "llama3.2:1b-instruct-fp16",
			NumPredict:  300,
			TimeoutSecs: 60,
			MaxAttempts: 3,
		},
		Summarizer: SummarizerConfig{MaxSentences: 5},
		Cache:      CacheConfig{Addr: "127.0.0.1:6379", TTLSecs: 600},
		Metrics:    MetricsConfig{Port: 9090},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	d := defaultConfig()
	if cfg.Corpus.Path == "" {
		cfg.Corpus.Path = d.Corpus.Path
	}
	if cfg.Corpus.Format == "" {
		cfg.Corpus.Format = d.Corpus.Format
	}
	if cfg.Corpus.SentencesPerChunk == 0 {
		cfg.Corpus.SentencesPerChunk = d.Corpus.SentencesPerChunk
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = d.Retriever.TopK
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = d.Generator.BaseURL
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = d.Generator.Model
	}
	if cfg.Generator.NumPredict == 0 {
		cfg.Generator.NumPredict = d.Generator.NumPredict
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = d.Generator.TimeoutSecs
	}
	if cfg.Generator.MaxAttempts == 0 {
		cfg.Generator.MaxAttempts = d.Generator.MaxAttempts
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = d.Summarizer.MaxSentences
	}
	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = d.Cache.TTLSecs
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = d.Metrics.Port
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
}
