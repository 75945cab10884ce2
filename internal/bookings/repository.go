package bookings

import (
	"context"
	"sync"
	"time"
)

// Repository persists bookings.
type Repository interface {
	// CreateIdempotent inserts the booking unless one already exists for the
	// same conversation and project. It returns the stored booking and
	// whether this call created it.
	CreateIdempotent(ctx context.Context, b Booking) (Booking, bool, error)

	// GetByConversationAndProject returns the booking for the pair, or
	// ErrNotFound.
	GetByConversationAndProject(ctx context.Context, conversationID string, projectID int64) (Booking, error)
}

type bookingKey struct {
	conversationID string
	projectID      int64
}

// InMemoryRepository is the non-durable implementation used by tests and
// local development.
type InMemoryRepository struct {
	mu     sync.Mutex
	byKey  map[bookingKey]Booking
	nextID int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byKey: make(map[bookingKey]Booking), nextID: 1}
}

func (r *InMemoryRepository) CreateIdempotent(ctx context.Context, b Booking) (Booking, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := bookingKey{b.ConversationID, b.ProjectID}
	if existing, ok := r.byKey[key]; ok {
		return existing, false, nil
	}

	b.ID = r.nextID
	r.nextID++
	if b.Status == "" {
		b.Status = StatusConfirmed
	}
	b.CreatedAt = time.Now().UTC()
	r.byKey[key] = b
	return b, true, nil
}

func (r *InMemoryRepository) GetByConversationAndProject(ctx context.Context, conversationID string, projectID int64) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byKey[bookingKey{conversationID, projectID}]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}
