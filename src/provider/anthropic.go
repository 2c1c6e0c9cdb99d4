package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
	"tyrant/src/options"
)

// Anthropic implements Provider for the Anthropic messages API
type Anthropic struct {
	base
	client anthropic.Client
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropic creates a new Anthropic adapter
func NewAnthropic(config Config) *Anthropic {
	b := newBase(options.ProviderAnthropic, config)

	opts := []option.RequestOption{
		option.WithAPIKey(b.config.APIKey),
		option.WithRequestTimeout(b.config.Timeout),
		option.WithMaxRetries(0),
	}
	if b.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(b.config.BaseURL, "/")+"/"))
	}

	return &Anthropic{
		base:   b,
		client: anthropic.NewClient(opts...),
	}
}

// GenerateCompletion implements Provider.GenerateCompletion. The system
// prompt travels in the top-level system field as the API requires.
func (a *Anthropic) GenerateCompletion(ctx context.Context, system message.Message, history []message.Message, opts options.Options) (string, error) {
	if a.config.APIKey == "" {
		return "", missingKey(a.base, opts)
	}

	model := a.model(opts)
	turns := message.WithoutSystem(history)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(MaxTokens(opts)),
		Temperature: anthropic.Float(Temperature(opts)),
		Messages:    make([]anthropic.MessageParam, 0, len(turns)),
	}
	if text := system.Text(); text != "" {
		params.System = []anthropic.TextBlockParam{{Text: text}}
	}
	for _, msg := range turns {
		block := anthropic.NewTextBlock(msg.Text())
		if msg.Role == message.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		perr := &tyerrors.ProviderError{
			Provider: string(a.name),
			Model:    model,
			Op:       "completion",
			Err:      err,
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.StatusCode
			var body anthropicErrorResponse
			if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil {
				perr.Message = body.Error.Message
			}
		}
		return "", perr
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", tyerrors.NewProviderError(string(a.name), model, tyerrors.ErrEmptyResponse)
	}

	return text.String(), nil
}
