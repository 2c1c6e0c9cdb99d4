package provider

import (
	"fmt"
	"os"

	tyerrors "tyrant/src/errors"
	"tyrant/src/options"
)

// Factory constructs an adapter for a provider tag. New is the production
// factory; tests substitute their own.
type Factory func(tag options.Provider, config Config) (Provider, error)

// New creates a provider adapter for tag. An empty API key falls back to the
// provider's environment variable; a still-missing key is reported by
// GenerateCompletion so construction never half-fails.
func New(tag options.Provider, config Config) (Provider, error) {
	if tag == "" {
		tag = options.DefaultProvider
	}

	if config.APIKey == "" {
		if env := EnvKey(tag); env != "" {
			config.APIKey = os.Getenv(env)
		}
	}

	switch tag {
	case options.ProviderOpenAI:
		return NewOpenAI(config), nil
	case options.ProviderGrok:
		return NewGrok(config), nil
	case options.ProviderAnthropic:
		return NewAnthropic(config), nil
	case options.ProviderGemini:
		return NewGemini(config), nil
	case options.ProviderVertex:
		return NewVertex(config), nil
	case options.ProviderOllama:
		return NewOllama(config), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: openai, anthropic, grok, gemini, vertex, ollama)",
			tyerrors.ErrUnknownProvider, tag)
	}
}

// EnvKey names the environment variable holding the API key for tag.
// Providers that need no key return "".
func EnvKey(tag options.Provider) string {
	switch tag {
	case options.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case options.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case options.ProviderGrok:
		return "XAI_API_KEY"
	case options.ProviderGemini:
		return "GEMINI_API_KEY"
	case options.ProviderVertex:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// missingKey is the error every keyed adapter returns when no key is configured
func missingKey(b base, opts options.Options) error {
	return &tyerrors.ProviderError{
		Provider: string(b.name),
		Model:    b.model(opts),
		Op:       "completion",
		Message:  fmt.Sprintf("set %s or pass an API key", EnvKey(b.name)),
		Err:      tyerrors.ErrMissingAPIKey,
	}
}
