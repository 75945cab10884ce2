package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/silverland/property-agent/pkg/logging"
)

// Service exposes the conversation engine to transports and dispatchers.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	GetHistory(ctx context.Context, conversationID string) ([]Message, error)
}

// StartRequest opens a conversation. ConversationID is optional; a blank one
// gets a generated UUID.
type StartRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
}

// MessageRequest carries one user turn.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Response is the engine's answer to either request.
type Response struct {
	ConversationID      string `json:"conversation_id"`
	Reply               string `json:"reply"`
	CurrentNode         string `json:"current_node"`
	PreferencesComplete bool   `json:"preferences_complete"`
	BookingID           *int64 `json:"booking_id,omitempty"`
}

// Engine implements Service on top of the turn processor.
type Engine struct {
	processor *TurnProcessor
	store     StateStore
	responder *Responder
	logger    *logging.Logger
}

var _ Service = (*Engine)(nil)

func NewEngine(processor *TurnProcessor, store StateStore, responder *Responder, logger *logging.Logger) *Engine {
	if processor == nil {
		panic("agent: turn processor required")
	}
	if store == nil {
		panic("agent: state store required")
	}
	if responder == nil {
		panic("agent: responder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		processor: processor,
		store:     store,
		responder: responder,
		logger:    logger,
	}
}

// StartConversation creates the state record and returns the opening
// greeting without consuming a user turn.
func (e *Engine) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	id := req.ConversationID
	if id == "" {
		id = uuid.NewString()
	}

	if existing, err := e.store.Load(ctx, id); err == nil {
		// Restarting an existing conversation is a no-op greeting.
		return &Response{
			ConversationID:      id,
			Reply:               e.responder.Greeting(),
			CurrentNode:         existing.CurrentNode,
			PreferencesComplete: existing.PreferencesComplete,
			BookingID:           existing.BookingID,
		}, nil
	} else if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}

	state := NewState(id)
	greeting := e.responder.Greeting()
	state.AppendMessage(RoleAssistant, greeting)
	if err := e.store.Save(ctx, state); err != nil {
		return nil, err
	}

	e.logger.Info("conversation started", "conversation_id", id)
	return &Response{
		ConversationID: id,
		Reply:          greeting,
		CurrentNode:    string(NodeGreet),
	}, nil
}

// ProcessMessage runs one turn.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if req.Message == "" {
		return nil, errors.New("agent: message required")
	}

	reply, state, err := e.processor.ProcessTurn(ctx, req.ConversationID, req.Message)
	if err != nil {
		return nil, err
	}

	return &Response{
		ConversationID:      state.ConversationID,
		Reply:               reply,
		CurrentNode:         state.CurrentNode,
		PreferencesComplete: state.PreferencesComplete,
		BookingID:           state.BookingID,
	}, nil
}

// GetHistory returns the transcript.
func (e *Engine) GetHistory(ctx context.Context, conversationID string) ([]Message, error) {
	state, err := e.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}
