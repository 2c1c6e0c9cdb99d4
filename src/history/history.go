// Package history persists conversations so chats can be resumed and the
// recent window replayed to a provider.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tyrant/src/config"
	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
)

// Conversation is the metadata of one stored chat
type Conversation struct {
	ID           string    `json:"id"`
	Personality  string    `json:"personality,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists conversations. Unknown ids fail with an error matching
// errors.ErrConversationNotFound. Implementations are safe for concurrent use.
type Store interface {
	// Create starts an empty conversation for personality ("" for none)
	Create(ctx context.Context, personality string) (Conversation, error)

	Get(ctx context.Context, id string) (Conversation, error)

	// Append adds msgs to the end of the conversation
	Append(ctx context.Context, id string, msgs ...message.Message) error

	// Messages returns the most recent limit messages in chronological
	// order. limit <= 0 returns all of them.
	Messages(ctx context.Context, id string, limit int) ([]message.Message, error)

	SetFeedback(ctx context.Context, id, feedback string) error

	// List returns up to limit conversations, most recently updated first.
	// limit <= 0 returns all of them.
	List(ctx context.Context, limit int) ([]Conversation, error)

	Delete(ctx context.Context, id string) error

	Close() error
}

// Open builds the store selected by cfg. The "none" backend returns a nil
// Store, meaning history is disabled.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case config.HistoryNone:
		return nil, nil
	case config.HistoryMemory:
		return NewMemoryStore(), nil
	case config.HistoryRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, tyerrors.NewStoreError("connect", backendRedis, err)
		}
		return NewRedisStore(client, RedisStoreConfig{}), nil
	case config.HistoryLibSQL, "":
		return NewLibSQLStore(cfg.Path)
	default:
		return nil, &tyerrors.ValidationError{Field: "history.backend", Value: cfg.Backend, Message: "unknown backend"}
	}
}

func newID() string {
	return uuid.NewString()
}

func notFound(op, backend, id string) error {
	return tyerrors.NewStoreError(op, backend, fmt.Errorf("%w: %s", tyerrors.ErrConversationNotFound, id))
}

var (
	clockMu   sync.Mutex
	lastStamp int64
)

// stamp returns a strictly increasing unix-nano timestamp so update order is
// total even when the wall clock doesn't advance between calls
func stamp() int64 {
	clockMu.Lock()
	defer clockMu.Unlock()
	now := time.Now().UnixNano()
	if now <= lastStamp {
		now = lastStamp + 1
	}
	lastStamp = now
	return now
}

func fromStamp(ns int64) time.Time {
	return time.Unix(0, ns)
}

func encodeBlocks(blocks []message.ContentBlock) (string, error) {
	if len(blocks) == 0 {
		return "", nil
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeBlocks(data string) ([]message.ContentBlock, error) {
	if data == "" {
		return nil, nil
	}
	var blocks []message.ContentBlock
	if err := json.Unmarshal([]byte(data), &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// tail returns the last limit elements of msgs, or all of them when limit <= 0
func tail(msgs []message.Message, limit int) []message.Message {
	if limit <= 0 || limit >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}
