package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
	"tyrant/src/options"
)

const ollamaBaseURL = "http://localhost:11434"

// Ollama implements Provider for a local Ollama server. It needs no API key.
type Ollama struct {
	base
	client *api.Client
	err    error
}

// NewOllama creates a new Ollama adapter. A malformed base URL is reported by
// GenerateCompletion.
func NewOllama(config Config) *Ollama {
	b := newBase(options.ProviderOllama, config)

	raw := b.config.BaseURL
	if raw == "" {
		raw = ollamaBaseURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return &Ollama{base: b, err: fmt.Errorf("invalid ollama base URL %q: %w", raw, err)}
	}

	return &Ollama{
		base:   b,
		client: api.NewClient(u, &http.Client{Timeout: b.config.Timeout}),
	}
}

// GenerateCompletion implements Provider.GenerateCompletion
func (c *Ollama) GenerateCompletion(ctx context.Context, system message.Message, history []message.Message, opts options.Options) (string, error) {
	model := c.model(opts)
	if c.err != nil {
		return "", tyerrors.NewProviderError(string(c.name), model, c.err)
	}

	conversation := message.WithSystem(system, history)
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: make([]api.Message, len(conversation)),
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": Temperature(opts),
			"num_predict": MaxTokens(opts),
		},
	}
	for i, msg := range conversation {
		req.Messages[i] = api.Message{Role: string(msg.Role), Content: msg.Text()}
	}

	var reply strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		perr := &tyerrors.ProviderError{
			Provider: string(c.name),
			Model:    model,
			Op:       "completion",
			Err:      err,
		}
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			perr.StatusCode = statusErr.StatusCode
			perr.Message = statusErr.ErrorMessage
		}
		return "", perr
	}

	if strings.TrimSpace(reply.String()) == "" {
		return "", tyerrors.NewProviderError(string(c.name), model, tyerrors.ErrEmptyResponse)
	}

	return reply.String(), nil
}
