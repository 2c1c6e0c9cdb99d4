// Package server exposes the dispatch core over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tyrant/src/config"
	tyerrors "tyrant/src/errors"
	"tyrant/src/history"
	"tyrant/src/message"
	"tyrant/src/options"
	"tyrant/src/personality"
	"tyrant/src/provider"
	"tyrant/src/tyrant"
)

// APIKeyHeader lets clients supply their own provider key per request
const APIKeyHeader = "X-API-Key"

const generateFailed = "Failed to generate response"

type ChatRequest struct {
	Messages       []message.Message `json:"messages"`
	Model          string            `json:"model"`
	Provider       string            `json:"provider"`
	SassLevel      *int              `json:"sassLevel"`
	FocusAreas     []string          `json:"focusAreas"`
	Temperature    *float64          `json:"temperature"`
	MaxTokens      *int              `json:"maxTokens"`
	PersonalityID  string            `json:"personalityId"`
	ConversationID string            `json:"conversationId"`
}

type ChatResponse struct {
	Message        message.Message `json:"message"`
	ConversationID string          `json:"conversationId,omitempty"`
}

type PersonalityInfo struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Description          string              `json:"description"`
	RecommendedProviders []options.Provider  `json:"recommendedProviders,omitempty"`
	Display              personality.Display `json:"display"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

type ConversationResponse struct {
	Conversation history.Conversation `json:"conversation"`
	Messages     []message.Message    `json:"messages"`
}

type Server struct {
	echo     *echo.Echo
	settings *config.Settings
	registry *personality.Registry
	store    history.Store
	factory  provider.Factory
}

// Option configures New
type Option func(*Server)

// WithHistory persists chats to store
func WithHistory(store history.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithProviderFactory replaces provider.New for every request
func WithProviderFactory(f provider.Factory) Option {
	return func(s *Server) { s.factory = f }
}

func New(settings *config.Settings, registry *personality.Registry, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger(), middleware.Recover(), middleware.CORS())

	s := &Server{
		echo:     e,
		settings: settings,
		registry: registry,
		factory:  provider.New,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")
	api.GET("/health", s.health)
	api.GET("/personalities", s.listPersonalities)
	api.POST("/chat", s.chat)
	api.GET("/conversations", s.listConversations)
	api.GET("/conversations/:id", s.getConversation)
	api.POST("/conversations/:id/feedback", s.setFeedback)
}

func (s *Server) Start(addr string) error {
	log.Printf("[Server] Listening on %s", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listPersonalities(c echo.Context) error {
	packs := s.registry.List()
	out := make([]PersonalityInfo, 0, len(packs))
	for _, p := range packs {
		out = append(out, PersonalityInfo{
			ID:                   p.ID,
			Name:                 p.Name,
			Description:          p.Description,
			RecommendedProviders: p.RecommendedProviders,
			Display:              p.Display,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) chat(c echo.Context) error {
	req := new(ChatRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := validateChat(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tag, ok := options.ParseProvider(req.Provider)
	if req.Provider == "" {
		tag = options.Provider(s.settings.Tyrant.Provider)
	} else if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unknown provider %q", req.Provider))
	}

	personalityID := req.PersonalityID
	if personalityID == "" {
		personalityID = s.settings.Tyrant.Personality
	}
	if personalityID != "" {
		if _, ok := s.registry.Get(personalityID); !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Personality %q not found", personalityID))
		}
	}

	ctx := c.Request().Context()
	turns, conv, err := s.conversationWindow(ctx, req)
	if err != nil {
		return err
	}

	// request values win over both the settings file and pack defaults
	perCall := requestOverrides(req)
	base := s.settings.OverridesFor(tag).Merge(perCall)

	apiKey := s.settings.APIKey(tag, c.Request().Header.Get(APIKeyHeader))
	opts := []tyrant.Option{
		tyrant.WithRegistry(s.registry),
		tyrant.WithProviderFactory(s.factory),
		tyrant.WithProviderConfig(s.settings.ProviderConfig(tag, "")),
	}
	if personalityID != "" {
		opts = append(opts, tyrant.UsePersonality(personalityID, true))
	}

	t, err := tyrant.New(apiKey, base, opts...)
	if err != nil {
		return s.chatError(err)
	}

	reply, err := t.GenerateResponse(ctx, turns, perCall)
	if err != nil {
		return s.chatError(err)
	}

	resp := ChatResponse{Message: message.Assistant(reply)}
	if s.store != nil {
		resp.ConversationID = s.save(ctx, conv, personalityID, req.Messages, resp.Message)
	}
	return c.JSON(http.StatusOK, resp)
}

// save appends the exchange to conv, creating the conversation first when the
// request did not name one. Failures are logged; the reply is still returned.
func (s *Server) save(ctx context.Context, conv *history.Conversation, personalityID string, sent []message.Message, reply message.Message) string {
	if conv == nil {
		created, err := s.store.Create(ctx, personalityID)
		if err != nil {
			log.Printf("[Server] Failed to create conversation: %v", err)
			return ""
		}
		conv = &created
	}

	saved := append(message.WithoutSystem(sent), reply)
	if err := s.store.Append(ctx, conv.ID, saved...); err != nil {
		log.Printf("[Server] Failed to save conversation %s: %v", conv.ID, err)
	}
	return conv.ID
}

// conversationWindow resolves the turns to send. With history enabled the
// stored window of a named conversation is replayed ahead of the request
// messages; a nil conversation means none was named.
func (s *Server) conversationWindow(ctx context.Context, req *ChatRequest) ([]message.Message, *history.Conversation, error) {
	if s.store == nil || req.ConversationID == "" {
		return req.Messages, nil, nil
	}

	conv, err := s.store.Get(ctx, req.ConversationID)
	if tyerrors.IsNotFound(err) {
		return nil, nil, echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
	}
	if err != nil {
		log.Printf("[Server] Failed to load conversation %s: %v", req.ConversationID, err)
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, generateFailed)
	}

	stored, err := s.store.Messages(ctx, conv.ID, s.settings.History.Size)
	if err != nil {
		log.Printf("[Server] Failed to load messages for %s: %v", conv.ID, err)
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, generateFailed)
	}
	return append(stored, req.Messages...), &conv, nil
}

// chatError maps core failures to responses without leaking detail
func (s *Server) chatError(err error) error {
	if errors.Is(err, tyerrors.ErrPersonalityNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Personality not found")
	}
	log.Printf("[Server] Error generating response: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, generateFailed)
}

func validateChat(req *ChatRequest) error {
	if len(req.Messages) == 0 {
		return &tyerrors.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			return &tyerrors.ValidationError{Field: "messages.role", Value: string(m.Role), Message: "must be user, assistant or system"}
		}
	}
	return nil
}

// requestOverrides turns the request body into call options. Sass level is
// clamped here; the core never re-validates it.
func requestOverrides(req *ChatRequest) options.Overrides {
	var ov options.Overrides
	if req.SassLevel != nil {
		ov.SassLevel = options.Int(options.ClampSassLevel(*req.SassLevel))
	}
	if req.FocusAreas != nil {
		ov.FocusAreas = req.FocusAreas
	}
	if req.Model != "" {
		ov.Model = options.String(req.Model)
	}
	if req.Temperature != nil {
		ov.Temperature = req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		ov.MaxTokens = req.MaxTokens
	}
	return ov
}

func (s *Server) listConversations(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusOK, []history.Conversation{})
	}
	convs, err := s.store.List(c.Request().Context(), 50)
	if err != nil {
		log.Printf("[Server] Failed to list conversations: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list conversations")
	}
	if convs == nil {
		convs = []history.Conversation{}
	}
	return c.JSON(http.StatusOK, convs)
}

func (s *Server) getConversation(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "History is disabled")
	}

	ctx := c.Request().Context()
	conv, err := s.store.Get(ctx, c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	msgs, err := s.store.Messages(ctx, conv.ID, 0)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, ConversationResponse{Conversation: conv, Messages: msgs})
}

func (s *Server) setFeedback(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "History is disabled")
	}

	req := new(FeedbackRequest)
	if err := c.Bind(req); err != nil || req.Feedback == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Feedback is required")
	}
	if err := s.store.SetFeedback(c.Request().Context(), c.Param("id"), req.Feedback); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func storeError(err error) error {
	if tyerrors.IsNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
	}
	log.Printf("[Server] History error: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "History unavailable")
}
