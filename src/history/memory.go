package history

import (
	"context"
	"sort"
	"sync"

	"tyrant/src/message"
)

const backendMemory = "memory"

type memoryConversation struct {
	meta     Conversation
	updated  int64
	messages []message.Message
}

// MemoryStore keeps conversations in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*memoryConversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*memoryConversation)}
}

func (s *MemoryStore) Create(ctx context.Context, personality string) (Conversation, error) {
	now := stamp()
	c := &memoryConversation{
		meta: Conversation{
			ID:          newID(),
			Personality: personality,
			CreatedAt:   fromStamp(now),
			UpdatedAt:   fromStamp(now),
		},
		updated: now,
	}

	s.mu.Lock()
	s.convs[c.meta.ID] = c
	s.mu.Unlock()
	return c.meta, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return Conversation{}, notFound("get", backendMemory, id)
	}
	return c.snapshot(), nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, msgs ...message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return notFound("append", backendMemory, id)
	}
	c.messages = append(c.messages, msgs...)
	c.touch()
	return nil
}

func (s *MemoryStore) Messages(ctx context.Context, id string, limit int) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, notFound("messages", backendMemory, id)
	}
	return append([]message.Message{}, tail(c.messages, limit)...), nil
}

func (s *MemoryStore) SetFeedback(ctx context.Context, id, feedback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return notFound("feedback", backendMemory, id)
	}
	c.meta.Feedback = feedback
	c.touch()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*memoryConversation, 0, len(s.convs))
	for _, c := range s.convs {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].updated > all[j].updated })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]Conversation, 0, len(all))
	for _, c := range all {
		out = append(out, c.snapshot())
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return notFound("delete", backendMemory, id)
	}
	delete(s.convs, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (c *memoryConversation) touch() {
	c.updated = stamp()
	c.meta.UpdatedAt = fromStamp(c.updated)
}

func (c *memoryConversation) snapshot() Conversation {
	meta := c.meta
	meta.MessageCount = len(c.messages)
	return meta
}
