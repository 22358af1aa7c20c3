package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrTruncated     = errors.New("response truncated at token limit")
	ErrEmptyHazard   = errors.New("hazard description is empty")
	ErrHazardTooLong = errors.New("hazard description too long")
	ErrNoAnalyses    = errors.New("no analyses requested")
	ErrInvalidKB     = errors.New("invalid knowledge base")
)

// EmbeddingError reports a failed or malformed call to the embedding endpoint.
type EmbeddingError struct {
	Status  int // HTTP status, 0 when the request never completed
	Message string
	Wrapped error
}

func (e *EmbeddingError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("embedding: status %d: %s", e.Status, e.Message)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("embedding: %s: %v", e.Message, e.Wrapped)
	}
	return "embedding: " + e.Message
}

func (e *EmbeddingError) Unwrap() error { return e.Wrapped }

// Temporary reports whether a retry might succeed.
func (e *EmbeddingError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500 || (e.Status == 0 && e.Wrapped != nil)
}

// GenerationError reports a non-success call to the generation endpoint.
type GenerationError struct {
	Status  int
	Message string
	Wrapped error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation: status %d: %s", e.Status, e.Message)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("generation: %s: %v", e.Message, e.Wrapped)
	}
	return "generation: " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Wrapped }

// AnalysisError is the single error surfaced by the single-analysis path.
type AnalysisError struct {
	Elapsed time.Duration
	Wrapped error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed after %dms: %v", e.Elapsed.Milliseconds(), e.Wrapped)
}

func (e *AnalysisError) Unwrap() error { return e.Wrapped }

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
