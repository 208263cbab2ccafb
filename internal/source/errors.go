package source

import (
	"errors"
	"fmt"
)

// ValidationError marks a single malformed record. The record is
// skipped and tallied; it never aborts the batch.
type ValidationError struct {
	Source string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid record: %s: %s", e.Source, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: invalid record: %s", e.Source, e.Reason)
}

// TransientError marks a network or storage failure that is worth
// retrying with backoff before the run is failed.
type TransientError struct {
	Source string
	Op     string
	Cause  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// ConfigError marks missing or unusable source configuration. Nothing
// is fetched; the run fails immediately.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration: %s", e.Source, e.Reason)
}

// NotFoundError indicates the upstream has no data for the requested
// identifier.
type NotFoundError struct {
	Source string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Source, e.ID)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsConfig reports whether err is or wraps a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
