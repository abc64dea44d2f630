package apperrors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates an empty or malformed symbol or text
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the social source kept reporting a rate limit
	// past the configured wait budget
	ErrRateLimited = errors.New("rate limited")
)

// Exit codes returned by the CLI for each error kind
const (
	ExitOK            = 0
	ExitUnknown       = 1
	ExitConfiguration = 2
	ExitSource        = 3
	ExitInvalidInput  = 4
	ExitClassifier    = 5
)

// ConfigurationError is fatal and only produced at startup: missing
// credentials, an invalid setting or a missing model artifact.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

// SourceUnavailableError carries which source failed during a fetch
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

func NewSourceUnavailableError(source string, err error) *SourceUnavailableError {
	return &SourceUnavailableError{Source: source, Err: err}
}

// ClassifierError wraps an inference failure on a loaded model
type ClassifierError struct {
	Backend string
	Err     error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s failed: %v", e.Backend, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

func NewClassifierError(backend string, err error) *ClassifierError {
	return &ClassifierError{Backend: backend, Err: err}
}

// InvalidInput wraps ErrInvalidInput with a description of what was wrong
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Kind names the taxonomy entry of err, used in logs and result envelopes.
func Kind(err error) string {
	var (
		cfgErr *ConfigurationError
		srcErr *SourceUnavailableError
		clsErr *ClassifierError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.As(err, &clsErr):
		return "classifier"
	case errors.As(err, &srcErr):
		return "source_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "unknown"
	}
}

// ExitCode maps err onto a distinct process exit code per error kind.
func ExitCode(err error) int {
	switch Kind(err) {
	case "":
		return ExitOK
	case "configuration":
		return ExitConfiguration
	case "invalid_input":
		return ExitInvalidInput
	case "classifier":
		return ExitClassifier
	case "source_unavailable":
		return ExitSource
	default:
		return ExitUnknown
	}
}
