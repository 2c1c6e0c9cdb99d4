package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios
var (
	// Personality errors
	ErrPersonalityNotFound  = errors.New("personality not found")
	ErrDuplicatePersonality = errors.New("personality already registered")

	// Provider errors
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrEmptyResponse   = errors.New("provider returned an empty response")

	// History errors
	ErrConversationNotFound = errors.New("conversation not found")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
	ErrOutOfRange      = errors.New("value out of acceptable range")
)

// ProviderError represents a failed call to a backing model service.
// It is surfaced to callers verbatim with the cause chained.
type ProviderError struct {
	Provider   string
	Model      string
	Op         string // "completion", "configure"
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed for model %s (status %d): %s",
			e.Provider, e.Op, e.Model, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed for model %s: %v",
			e.Provider, e.Op, e.Model, e.Err)
	}
	return fmt.Sprintf("%s %s failed for model %s: %s",
		e.Provider, e.Op, e.Model, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a provider error for a failed completion
func NewProviderError(provider, model string, err error) error {
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Op:       "completion",
		Err:      err,
	}
}

// PersonalityNotFoundError is returned when an unknown personality id is requested
type PersonalityNotFoundError struct {
	ID string
}

func (e *PersonalityNotFoundError) Error() string {
	return fmt.Sprintf("personality %q not found", e.ID)
}

func (e *PersonalityNotFoundError) Is(target error) bool {
	return target == ErrPersonalityNotFound
}

// DuplicateIDError is returned when a personality id collides with a registered one
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("personality with id %q already exists", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicatePersonality
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s (value: %v): %s",
			e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StoreError represents a history store operation error with context
type StoreError struct {
	Op      string // Operation that failed (e.g., "append", "load", "list")
	Backend string // "libsql", "redis", "memory"
	Err     error  // Underlying error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s operation: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new store error
func NewStoreError(op, backend string, err error) error {
	return &StoreError{
		Op:      op,
		Backend: backend,
		Err:     err,
	}
}

// Helper functions for common error patterns

// IsNotFound checks if error indicates a missing resource
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonalityNotFound) ||
		errors.Is(err, ErrConversationNotFound)
}

// IsProviderError reports whether err came from a provider adapter
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// WrapWithContext adds context to an error
func WrapWithContext(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
