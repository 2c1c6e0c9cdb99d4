package message

import (
	"strings"
)

// Role identifies the author of a message in a conversation
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ContentBlock is one piece of structured message content
type ContentBlock struct {
	Type     string `json:"type"` // "text" or "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message is a single conversation turn. Either Content or Blocks is set.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// System builds a system-role message
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user-role message
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant-role message
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Text flattens the message into plain text, joining text blocks with newlines
func (m Message) Text() string {
	if len(m.Blocks) == 0 {
		return m.Content
	}

	var parts []string
	if m.Content != "" {
		parts = append(parts, m.Content)
	}
	for _, b := range m.Blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// WithSystem returns a new slice with system first, followed by history minus
// any system-role messages. The input slice is not modified.
func WithSystem(system Message, history []Message) []Message {
	out := make([]Message, 0, len(history)+1)
	out = append(out, system)
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// WithoutSystem returns history minus any system-role messages
func WithoutSystem(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
