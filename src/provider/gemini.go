package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
	"tyrant/src/options"
)

// Gemini implements Provider for Google's Gemini API and for Vertex AI.
// The underlying client is created on first use.
type Gemini struct {
	base
	backend genai.Backend

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini creates an adapter for the Gemini developer API
func NewGemini(config Config) *Gemini {
	return &Gemini{
		base:    newBase(options.ProviderGemini, config),
		backend: genai.BackendGeminiAPI,
	}
}

// NewVertex creates an adapter for Vertex AI. Without an API key the client
// falls back to application default credentials and GOOGLE_CLOUD_PROJECT /
// GOOGLE_CLOUD_LOCATION.
func NewVertex(config Config) *Gemini {
	return &Gemini{
		base:    newBase(options.ProviderVertex, config),
		backend: genai.BackendVertexAI,
	}
}

func (g *Gemini) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  g.config.APIKey,
		Backend: g.backend,
	}
	if g.config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: g.config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	g.client = client
	return client, nil
}

// GenerateCompletion implements Provider.GenerateCompletion
func (g *Gemini) GenerateCompletion(ctx context.Context, system message.Message, history []message.Message, opts options.Options) (string, error) {
	if g.config.APIKey == "" && g.backend == genai.BackendGeminiAPI {
		return "", missingKey(g.base, opts)
	}

	model := g.model(opts)
	fail := func(err error) (string, error) {
		return "", tyerrors.NewProviderError(string(g.name), model, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	client, err := g.genaiClient(ctx)
	if err != nil {
		return fail(err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system.Text(), genai.RoleUser),
		Temperature:       genai.Ptr(float32(Temperature(opts))),
		MaxOutputTokens:   int32(MaxTokens(opts)),
	}

	res, err := client.Models.GenerateContent(ctx, model, toGenaiContents(history), config)
	if err != nil {
		return fail(err)
	}

	text := candidateText(res)
	if strings.TrimSpace(text) == "" {
		return fail(tyerrors.ErrEmptyResponse)
	}
	return text, nil
}

// toGenaiContents maps history onto Gemini turns. System turns are dropped
// because the system prompt travels as SystemInstruction.
func toGenaiContents(history []message.Message) []*genai.Content {
	turns := message.WithoutSystem(history)
	contents := make([]*genai.Content, 0, len(turns))
	for _, msg := range turns {
		var role genai.Role = genai.RoleUser
		if msg.Role == message.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text(), role))
	}
	return contents
}

// candidateText joins the text parts of the first candidate. Blocked prompts
// come back with no candidates.
func candidateText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}
