// Package chat implements conversations, the simulated participant, reply
// suggestions and per-message translations.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RichardoC/palchat/internal/models"
)

// Store holds conversations in seed order. Conversations are only ever
// appended to.
type Store interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	Conversation(ctx context.Context, id string) (models.Conversation, error)
	// AppendMessage adds a message to the tail of a conversation and updates
	// its preview in the same step. It returns ErrConversationNotFound, with
	// the store unchanged, when the conversation does not exist.
	AppendMessage(ctx context.Context, conversationID, senderID, text string) (models.Conversation, error)
	Seed(ctx context.Context, seeds []models.Conversation) error
}

// MessageID formats the n-th message identifier handed out by a store.
func MessageID(n int64) string {
	return fmt.Sprintf("m%d", n)
}

// MemoryStore is a Store backed by process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations []*models.Conversation
	index         map[string]int
	lastID        int64
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
		now:   time.Now,
	}
}

func (s *MemoryStore) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Conversation(ctx context.Context, id string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return s.conversations[i].Clone(), nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID, senderID, text string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[conversationID]
	if !ok {
		return models.Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	c := s.conversations[i]
	s.lastID++
	c.Messages = append(c.Messages, models.Message{
		ID:        MessageID(s.lastID),
		SenderID:  senderID,
		Text:      text,
		CreatedAt: s.now(),
	})
	c.LastMessage = text
	return c.Clone(), nil
}

// Seed loads conversations in order. Seed messages get fresh identifiers; a
// zero CreatedAt is replaced with the current time.
func (s *MemoryStore) Seed(ctx context.Context, seeds []models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seed := range seeds {
		if _, dup := s.index[seed.ID]; dup {
			return fmt.Errorf("seed conversation %s: duplicate id", seed.ID)
		}
		c := seed.Clone()
		for j := range c.Messages {
			s.lastID++
			c.Messages[j].ID = MessageID(s.lastID)
			if c.Messages[j].CreatedAt.IsZero() {
				c.Messages[j].CreatedAt = s.now()
			}
		}
		if last, ok := c.Last(); ok {
			c.LastMessage = last.Text
		}
		s.index[c.ID] = len(s.conversations)
		s.conversations = append(s.conversations, &c)
	}
	return nil
}
