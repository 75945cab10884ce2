package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrStateNotFound is returned when no state exists for the conversation.
var ErrStateNotFound = errors.New("agent: conversation state not found")

// ErrVersionConflict signals a concurrent writer saved the state first.
var ErrVersionConflict = errors.New("agent: state version conflict")

const defaultStateTTL = 24 * time.Hour

// StateStore persists conversation state between turns. Save enforces
// optimistic concurrency: it succeeds only when the stored version still
// equals the version the state was loaded with, then increments it.
type StateStore interface {
	Load(ctx context.Context, conversationID string) (*State, error)
	Save(ctx context.Context, state *State) error
}

// RedisStateStore keeps state as JSON in Redis with a sliding TTL.
type RedisStateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("agent: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStateStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("propertyagent.internal.agent.state"),
	}
}

func stateKey(conversationID string) string {
	return fmt.Sprintf("conversation_state:%s", conversationID)
}

func (s *RedisStateStore) Load(ctx context.Context, conversationID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "agent.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("agent: load state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("agent: decode state: %w", err)
	}
	return &state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state *State) error {
	ctx, span := s.tracer.Start(ctx, "agent.save_state")
	defer span.End()

	key := stateKey(state.ConversationID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("agent: read current state: %w", err)
		}
		if err == nil {
			var current State
			if decodeErr := json.Unmarshal(data, &current); decodeErr == nil {
				if current.Version != state.Version {
					return ErrVersionConflict
				}
			}
		}

		next := *state
		next.Version = state.Version + 1
		next.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("agent: encode state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		state.Version = next.Version
		state.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// MemoryStateStore is the non-durable implementation for tests and local
// development.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string][]byte)}
}

func (s *MemoryStateStore) Load(ctx context.Context, conversationID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.states[conversationID]
	if !ok {
		return nil, ErrStateNotFound
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("agent: decode state: %w", err)
	}
	return &state, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.states[state.ConversationID]; ok {
		var current State
		if err := json.Unmarshal(data, &current); err == nil && current.Version != state.Version {
			return ErrVersionConflict
		}
	}

	state.Version++
	state.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(state)
	if err != nil {
		state.Version--
		return fmt.Errorf("agent: encode state: %w", err)
	}
	s.states[state.ConversationID] = payload
	return nil
}
