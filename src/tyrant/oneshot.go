package tyrant

import (
	"context"

	"tyrant/src/message"
	"tyrant/src/options"
)

// ToughLove answers a single user message with no personality active
func ToughLove(ctx context.Context, userMessage, apiKey string, overrides options.Overrides, opts ...Option) (string, error) {
	t, err := New(apiKey, overrides, opts...)
	if err != nil {
		return "", err
	}
	return t.GenerateResponse(ctx, []message.Message{message.User(userMessage)}, options.Overrides{})
}

// WithPersonality answers a single user message in the voice of personality
// id. overrides select the provider and win over the pack's default options.
func WithPersonality(ctx context.Context, userMessage, id, apiKey string, overrides options.Overrides, opts ...Option) (string, error) {
	t, err := New(apiKey, overrides, append(opts, UsePersonality(id, true))...)
	if err != nil {
		return "", err
	}
	return t.GenerateResponse(ctx, []message.Message{message.User(userMessage)}, overrides)
}
