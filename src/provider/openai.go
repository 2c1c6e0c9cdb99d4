package provider

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
	"tyrant/src/options"
)

const grokBaseURL = "https://api.x.ai/v1"

// OpenAI implements Provider for the OpenAI chat completions API and any
// OpenAI-compatible endpoint
type OpenAI struct {
	base
	client *openai.Client
}

// NewOpenAI creates a new OpenAI adapter
func NewOpenAI(config Config) *OpenAI {
	return newOpenAICompatible(options.ProviderOpenAI, config)
}

// NewGrok creates an adapter for xAI's OpenAI-compatible API
func NewGrok(config Config) *OpenAI {
	if config.BaseURL == "" {
		config.BaseURL = grokBaseURL
	}
	return newOpenAICompatible(options.ProviderGrok, config)
}

func newOpenAICompatible(name options.Provider, config Config) *OpenAI {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAI{
		base:   newBase(name, config),
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// GenerateCompletion implements Provider.GenerateCompletion
func (o *OpenAI) GenerateCompletion(ctx context.Context, system message.Message, history []message.Message, opts options.Options) (string, error) {
	if o.config.APIKey == "" {
		return "", missingKey(o.base, opts)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	model := o.model(opts)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(message.WithSystem(system, history)),
		Temperature: openAITemperature(opts),
		MaxTokens:   MaxTokens(opts),
	})
	if err != nil {
		perr := &tyerrors.ProviderError{
			Provider: string(o.name),
			Model:    model,
			Op:       "completion",
			Err:      err,
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			perr.StatusCode = apiErr.HTTPStatusCode
			perr.Message = apiErr.Message
		}
		return "", perr
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", tyerrors.NewProviderError(string(o.name), model, tyerrors.ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// openAITemperature maps an explicit 0 to the smallest positive float32;
// the client omits a zero temperature and the server default would apply.
func openAITemperature(opts options.Options) float32 {
	temp := float32(Temperature(opts))
	if temp == 0 {
		return math.SmallestNonzeroFloat32
	}
	return temp
}

// toOpenAIMessages converts our messages to OpenAI format
func toOpenAIMessages(messages []message.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{Role: string(msg.Role)}
		if len(msg.Blocks) == 0 {
			out[i].Content = msg.Content
			continue
		}

		var parts []openai.ChatMessagePart
		if msg.Content != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: msg.Content})
		}
		for _, b := range msg.Blocks {
			switch b.Type {
			case "image_url":
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: b.ImageURL},
				})
			default:
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: b.Text})
			}
		}
		out[i].MultiContent = parts
	}
	return out
}
