package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tyrant/src/config"
	tyerrors "tyrant/src/errors"
	"tyrant/src/history"
	"tyrant/src/message"
	"tyrant/src/options"
	"tyrant/src/personality"
	"tyrant/src/provider"
)

type recorded struct {
	tag     options.Provider
	apiKey  string
	model   string
	system  message.Message
	history []message.Message
	opts    options.Options
}

// stubProvider answers every completion with reply, or err when set
type stubProvider struct {
	tag    options.Provider
	apiKey string
	model  string
	reply  string
	err    error
	calls  *[]recorded
	mu     *sync.Mutex
}

func (p *stubProvider) Name() options.Provider { return p.tag }

func (p *stubProvider) SystemPrompt(opts options.Options) message.Message {
	return provider.DefaultSystemPrompt(opts)
}

func (p *stubProvider) GenerateCompletion(ctx context.Context, system message.Message, history []message.Message, opts options.Options) (string, error) {
	p.mu.Lock()
	*p.calls = append(*p.calls, recorded{tag: p.tag, apiKey: p.apiKey, model: p.model, system: system, history: history, opts: opts})
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type harness struct {
	server *Server
	mu     sync.Mutex
	calls  []recorded
}

func newHarness(t *testing.T, reply string, err error, opts ...Option) *harness {
	t.Helper()
	h := &harness{}
	factory := func(tag options.Provider, cfg provider.Config) (provider.Provider, error) {
		return &stubProvider{tag: tag, apiKey: cfg.APIKey, model: cfg.Model, reply: reply, err: err, calls: &h.calls, mu: &h.mu}, nil
	}

	settings := config.Defaults()
	settings.History.Size = 2
	h.server = New(settings, personality.NewRegistry(), append([]Option{WithProviderFactory(factory)}, opts...)...)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func (h *harness) last(t *testing.T) recorded {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		t.Fatal("Expected a provider call")
	}
	return h.calls[len(h.calls)-1]
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", nil)
	rec := h.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", body)
	}
}

func TestListPersonalities(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", nil)
	rec := h.do(t, http.MethodGet, "/api/personalities", "", nil)

	var list []PersonalityInfo
	decode(t, rec, &list)
	if len(list) != 5 || list[0].ID != "tyrant" || list[2].ID != "drill-sergeant" {
		t.Errorf("Unexpected personalities %+v", list)
	}
	if list[1].Name == "" || list[1].Description == "" {
		t.Error("Expected name and description")
	}
}

func TestChat(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "Stop stalling.", nil)
	body := `{"messages":[{"role":"user","content":"I'll do it later"}],"provider":"grok","sassLevel":42,"focusAreas":["fitness"]}`
	rec := h.do(t, http.MethodPost, "/api/chat", body, map[string]string{APIKeyHeader: "header-key"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	decode(t, rec, &resp)
	if resp.Message.Role != message.RoleAssistant || resp.Message.Content != "Stop stalling." {
		t.Errorf("Unexpected reply %+v", resp.Message)
	}
	if resp.ConversationID != "" {
		t.Error("Expected no conversation id without history")
	}

	call := h.last(t)
	if call.tag != options.ProviderGrok || call.apiKey != "header-key" {
		t.Errorf("Expected grok with the header key, got %s %q", call.tag, call.apiKey)
	}
	if call.opts.SassLevel != 10 {
		t.Errorf("Expected sass clamped to 10, got %d", call.opts.SassLevel)
	}
	if !strings.Contains(call.system.Content, "fitness") {
		t.Error("Expected focus areas in the system prompt")
	}
}

func TestChatWithPersonality(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "raw", nil)
	body := `{"messages":[{"role":"user","content":"meh"}],"personalityId":"inner-critic","sassLevel":0}`
	rec := h.do(t, http.MethodPost, "/api/chat", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	call := h.last(t)
	if call.opts.SassLevel != 1 {
		t.Errorf("Expected sass clamped to 1, got %d", call.opts.SassLevel)
	}
	if call.opts.Temperature == nil || *call.opts.Temperature != 0.8 {
		t.Error("Expected inner-critic default temperature")
	}
	if !strings.Contains(call.system.Content, "Inner Critic") {
		t.Error("Expected inner-critic prompt")
	}
}

func TestChatErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"malformed", `{"messages":`, http.StatusBadRequest, "Invalid request body"},
		{"no messages", `{"messages":[]}`, http.StatusBadRequest, ""},
		{"bad role", `{"messages":[{"role":"robot","content":"x"}]}`, http.StatusBadRequest, ""},
		{"unknown provider", `{"messages":[{"role":"user","content":"x"}],"provider":"hal"}`, http.StatusBadRequest, ""},
		{"unknown personality", `{"messages":[{"role":"user","content":"x"}],"personalityId":"ghost"}`, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, "unused", nil)
			rec := h.do(t, http.MethodPost, "/api/chat", tt.body, nil)
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}

			var body map[string]string
			decode(t, rec, &body)
			if body["message"] == "" {
				t.Error("Expected a message field")
			}
			if tt.msg != "" && body["message"] != tt.msg {
				t.Errorf("Expected %q, got %q", tt.msg, body["message"])
			}
			if len(h.calls) != 0 {
				t.Error("Expected no provider call")
			}
		})
	}
}

func TestChatProviderFailureIsGeneric(t *testing.T) {
	t.Parallel()

	cause := &tyerrors.ProviderError{Provider: "openai", StatusCode: 401, Message: "invalid key sk-secret"}
	h := newHarness(t, "", cause)
	rec := h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"x"}]}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "Failed to generate response" {
		t.Errorf("Expected generic message, got %q", body["message"])
	}
	if strings.Contains(rec.Body.String(), "sk-secret") {
		t.Error("Expected internal detail to stay out of the response")
	}
}

func TestChatOtherProviderIgnoresConfiguredModel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "ok", nil)
	h.server.settings.Tyrant.Model = "gpt-4o"
	h.server.settings.Providers["anthropic"] = config.ProviderConfig{Model: "claude-3-5-haiku-latest"}

	rec := h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"x"}],"provider":"anthropic"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	call := h.last(t)
	if call.tag != options.ProviderAnthropic || call.opts.Model != "" || call.model != "claude-3-5-haiku-latest" {
		t.Errorf("Expected anthropic with its own model, got %s opts=%q adapter=%q", call.tag, call.opts.Model, call.model)
	}

	rec = h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"x"}]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	call = h.last(t)
	if call.tag != options.ProviderOpenAI || call.opts.Model != "gpt-4o" {
		t.Errorf("Expected openai with the configured model, got %s %q", call.tag, call.opts.Model)
	}
}

func TestChatFailureStoresNoConversation(t *testing.T) {
	t.Parallel()

	store := history.NewMemoryStore()
	h := newHarness(t, "", tyerrors.ErrEmptyResponse, WithHistory(store))

	rec := h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"x"}]}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	convs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 0 {
		t.Errorf("Expected no conversation after a failed reply, got %d", len(convs))
	}
}

func TestChatWithHistory(t *testing.T) {
	t.Parallel()

	store := history.NewMemoryStore()
	h := newHarness(t, "Do it now.", nil, WithHistory(store))

	rec := h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"first"}],"personalityId":"coach"}`, nil)
	var resp ChatResponse
	decode(t, rec, &resp)
	if resp.ConversationID == "" {
		t.Fatal("Expected a conversation id")
	}

	conv, err := store.Get(context.Background(), resp.ConversationID)
	if err != nil || conv.Personality != "coach" || conv.MessageCount != 2 {
		t.Fatalf("Unexpected stored conversation %+v %v", conv, err)
	}

	body := `{"messages":[{"role":"user","content":"second"}],"conversationId":"` + resp.ConversationID + `"}`
	rec = h.do(t, http.MethodPost, "/api/chat", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// history size 2: the stored pair plus the new turn
	call := h.last(t)
	if len(call.history) != 3 || call.history[0].Content != "first" || call.history[2].Content != "second" {
		t.Errorf("Unexpected replayed history %+v", call.history)
	}

	rec = h.do(t, http.MethodGet, "/api/conversations/"+resp.ConversationID, "", nil)
	var got ConversationResponse
	decode(t, rec, &got)
	if len(got.Messages) != 4 {
		t.Errorf("Expected 4 stored messages, got %d", len(got.Messages))
	}

	rec = h.do(t, http.MethodPost, "/api/conversations/"+resp.ConversationID+"/feedback", `{"feedback":"helpful"}`, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	conv, _ = store.Get(context.Background(), resp.ConversationID)
	if conv.Feedback != "helpful" {
		t.Errorf("Expected feedback to be stored, got %q", conv.Feedback)
	}

	rec = h.do(t, http.MethodGet, "/api/conversations", "", nil)
	var list []history.Conversation
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("Expected 1 conversation, got %d", len(list))
	}

	rec = h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"x"}],"conversationId":"nope"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown conversation, got %d", rec.Code)
	}
}

func TestRequestOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int
		want int
	}{
		{"low", -5, 1},
		{"high", 11, 10},
		{"ok", 6, 6},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ov := requestOverrides(&ChatRequest{SassLevel: options.Int(tt.in)})
			if *ov.SassLevel != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, *ov.SassLevel)
			}
		})
	}

	if !requestOverrides(&ChatRequest{}).IsZero() {
		t.Error("Expected empty request to yield no overrides")
	}
}
