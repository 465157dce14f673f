package main

import (
	"errors"

	"sparserag/internal/domain"
)

// Exit codes returned by the rag CLI.
const (
	ExitSuccess   = 0   // Success
	ExitError     = 1   // General error (invalid arguments, runtime failure)
	ExitConfig    = 2   // Configuration missing or invalid
	ExitCorpus    = 3   // Corpus not found or empty
	ExitBackend   = 4   // Generation backend unreachable or failing
	ExitCancelled = 130 // Interrupted (Ctrl-C)
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, domain.ErrCancelled):
		return ExitCancelled
	case isConfigError(err):
		return ExitConfig
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEmptyCorpus):
		return ExitCorpus
	case errors.Is(err, domain.ErrBackend), errors.Is(err, domain.ErrBackendUnreachable):
		return ExitBackend
	default:
		return ExitError
	}
}
