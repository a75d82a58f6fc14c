package errors

import (
	"fmt"
	"strings"
	"time"
)

// Error types for the lexmatch system
type ErrorType string

const (
	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Vocabulary loading errors
	ErrorTypeVocabularyLoad ErrorType = "vocabulary_load"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ConfigError represents a configuration error.
// Raised at construction time only; never while matching.
type ConfigError struct {
	Type       ErrorType
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Type:       ErrorTypeConfig,
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %q): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// VocabularyLoadError is reported by vocabulary sources when a load fails
// (connection errors, malformed files, queries with the wrong shape).
type VocabularyLoadError struct {
	Type       ErrorType
	Source     string
	Label      string
	Underlying error
	Timestamp  time.Time
}

// NewVocabularyLoadError creates a new vocabulary load error
func NewVocabularyLoadError(source string, err error) *VocabularyLoadError {
	return &VocabularyLoadError{
		Type:       ErrorTypeVocabularyLoad,
		Source:     source,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithLabel records which entity label was being loaded
func (e *VocabularyLoadError) WithLabel(label string) *VocabularyLoadError {
	e.Label = label
	return e
}

// Error implements the error interface
func (e *VocabularyLoadError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("vocabulary load failed for %s (%s): %v", e.Source, e.Label, e.Underlying)
	}
	return fmt.Sprintf("vocabulary load failed for %s: %v", e.Source, e.Underlying)
}

// Unwrap returns the underlying error
func (e *VocabularyLoadError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
