package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("corpus source not found")
	ErrEmptyCorpus        = errors.New("corpus is empty")
	ErrNotReady           = errors.New("index not ready")
	ErrBackendUnreachable = errors.New("generation backend unreachable")
	ErrBackend            = errors.New("generation backend error")
	ErrCancelled          = errors.New("operation cancelled")
	ErrMalformedEvent     = errors.New("malformed stream event")
)

// Phase names the core operation a failure came from.
type Phase string

const (
	PhaseLoad     Phase = "load"
	PhaseBuild    Phase = "build"
	PhaseRetrieve Phase = "retrieve"
	PhaseGenerate Phase = "generate"
)

// PhaseError tags an error with the phase that produced it so callers know
// which step to retry.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// WrapPhase returns nil for a nil err, otherwise a *PhaseError.
func WrapPhase(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var pe *PhaseError
	if errors.As(err, &pe) && pe.Phase == phase {
		return err
	}
	return &PhaseError{Phase: phase, Err: err}
}

// Cancelled wraps a context error so that it matches both ErrCancelled and
// the original cause.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// PhaseOf extracts the phase of err, if any.
func PhaseOf(err error) (Phase, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}
