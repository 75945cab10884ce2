package leads

import (
	"context"
	"sync"
	"time"
)

// Repository persists leads keyed by conversation.
type Repository interface {
	// Upsert inserts the lead or, when one already exists for the
	// conversation, overwrites its contact and preference fields. The stored
	// row is returned with its ID and timestamps populated.
	Upsert(ctx context.Context, l Lead) (Lead, error)

	// GetByConversation returns the lead for a conversation, or ErrNotFound.
	GetByConversation(ctx context.Context, conversationID string) (Lead, error)
}

// InMemoryRepository is the non-durable implementation used by tests and
// local development.
type InMemoryRepository struct {
	mu     sync.Mutex
	byConv map[string]Lead
	nextID int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byConv: make(map[string]Lead), nextID: 1}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, l Lead) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.byConv[l.ConversationID]; ok {
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
	} else {
		l.ID = r.nextID
		r.nextID++
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	r.byConv[l.ConversationID] = l
	return l, nil
}

func (r *InMemoryRepository) GetByConversation(ctx context.Context, conversationID string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byConv[conversationID]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}
