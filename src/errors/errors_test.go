package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProviderErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewProviderError("openai", "gpt-4o", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected provider error to chain its cause")
	}
	if !IsProviderError(err) {
		t.Error("Expected IsProviderError to detect provider error")
	}
	if !IsProviderError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("Expected IsProviderError to see through wrapping")
	}
	if !strings.Contains(err.Error(), "gpt-4o") {
		t.Errorf("Expected error message to name the model, got %q", err.Error())
	}
}

func TestProviderErrorWithStatus(t *testing.T) {
	t.Parallel()

	err := &ProviderError{Provider: "anthropic", Model: "claude", Op: "completion", StatusCode: 401, Message: "invalid x-api-key"}
	want := "anthropic completion failed for model claude (status 401): invalid x-api-key"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestPersonalityErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
		notFound bool
	}{
		{"not found", &PersonalityNotFoundError{ID: "ghost"}, ErrPersonalityNotFound, true},
		{"duplicate", &DuplicateIDError{ID: "tyrant"}, ErrDuplicatePersonality, false},
		{"conversation", fmt.Errorf("load: %w", ErrConversationNotFound), ErrConversationNotFound, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("Expected %v to match sentinel %v", tt.err, tt.sentinel)
			}
			if IsNotFound(tt.err) != tt.notFound {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, !tt.notFound, tt.notFound)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Field: "sassLevel", Value: 42, Message: "must be between 1 and 10"}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("Expected validation error to unwrap to ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "value: 42") {
		t.Errorf("Expected value in message, got %q", err.Error())
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "ignored") != nil {
		t.Error("Expected nil error to stay nil")
	}

	err := WrapWithContext(ErrMissingAPIKey, "provider %s", "grok")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Error("Expected wrapped error to keep its sentinel")
	}
	if err.Error() != "provider grok: missing API key" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
