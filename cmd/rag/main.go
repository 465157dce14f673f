// Package main provides the rag CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sparserag/internal/config"
	"sparserag/internal/logger"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	cfgPath  string
	logLevel string
	cfg      *config.AppConfig
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Sparse TF-IDF retrieval with streamed answers from a local model",
	Long: `rag indexes a corpus into sparse TF-IDF vectors, retrieves the passages
most similar to a query by cosine similarity, and can stream an answer
grounded in those passages from an Ollama server.

The corpus is either a JSONL file of {"id","title","text"} records or a set
of plain text files split into sentence chunks. See 'rag build --help'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml, then ~/.config/rag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.Version = Version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, path, err := config.Resolve(cfgPath)
	if err != nil {
		return &configError{err: err}
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	cfg = c
	if cmd.Name() != tuiCmd.Name() {
		logger.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	}
	logger.WithComponent("cli").Debug("config loaded", "path", path)
	return nil
}

// configError marks failures to resolve or validate the configuration.
type configError struct{ err error }

func (e *configError) Error() string { return "config: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func isConfigError(err error) bool {
	var ce *configError
	return errors.As(err, &ce)
}
