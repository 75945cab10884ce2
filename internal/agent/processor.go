package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/silverland/property-agent/pkg/logging"
)

const defaultTurnTimeout = 60 * time.Second

// TurnProcessor is the single entry point for conversation turns. It loads
// state, runs the router to completion, and persists the result exactly once.
// Turns for the same conversation are serialized; different conversations run
// in parallel.
type TurnProcessor struct {
	store       StateStore
	router      *Router
	logger      *logging.Logger
	turnTimeout time.Duration

	locks sync.Map // conversationID -> *sync.Mutex
}

// NewTurnProcessor creates the processor. turnTimeout <= 0 uses the default.
func NewTurnProcessor(store StateStore, router *Router, logger *logging.Logger, turnTimeout time.Duration) *TurnProcessor {
	if store == nil {
		panic("agent: state store required")
	}
	if router == nil {
		panic("agent: router required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}
	return &TurnProcessor{
		store:       store,
		router:      router,
		logger:      logger,
		turnTimeout: turnTimeout,
	}
}

func (p *TurnProcessor) lockFor(conversationID string) *sync.Mutex {
	actual, _ := p.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// ProcessTurn applies one user message and returns the assistant reply with
// the updated state. On error nothing is persisted; the turn simply never
// happened.
func (p *TurnProcessor) ProcessTurn(ctx context.Context, conversationID, userMessage string) (string, *State, error) {
	if conversationID == "" {
		return "", nil, errors.New("agent: conversation id required")
	}

	lock := p.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.turnTimeout)
	defer cancel()

	state, err := p.store.Load(ctx, conversationID)
	if errors.Is(err, ErrStateNotFound) {
		state = NewState(conversationID)
	} else if err != nil {
		return "", nil, err
	}

	// Retries never carry across turns.
	state.RetryCount = 0
	state.AppendMessage(RoleUser, userMessage)

	reply, err := p.router.Run(ctx, state)
	if err != nil {
		return "", nil, fmt.Errorf("agent: turn failed: %w", err)
	}

	state.AppendMessage(RoleAssistant, reply)
	state.TurnCount++

	if err := p.save(ctx, state); err != nil {
		return "", nil, err
	}
	return reply, state, nil
}

// save persists once, retrying a version conflict a single time by adopting
// the stored version. Conflicts only arise from another process; in-process
// turns are already serialized by the per-conversation lock.
func (p *TurnProcessor) save(ctx context.Context, state *State) error {
	err := p.store.Save(ctx, state)
	if !errors.Is(err, ErrVersionConflict) {
		return err
	}

	p.logger.Warn("state version conflict, reapplying",
		"conversation_id", state.ConversationID)

	current, loadErr := p.store.Load(ctx, state.ConversationID)
	if loadErr != nil && !errors.Is(loadErr, ErrStateNotFound) {
		return loadErr
	}
	if current != nil {
		state.Version = current.Version
	}
	return p.store.Save(ctx, state)
}
