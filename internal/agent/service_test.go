package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *routerFixture, *MemoryStateStore) {
	t.Helper()
	f := newRouterFixture(t)
	store := NewMemoryStateStore()
	responder := NewResponder(&stubLLM{responses: []string{"sure"}}, "model-x", nil)
	p := NewTurnProcessor(store, f.router, nil, 0)
	return NewEngine(p, store, responder, nil), f, store
}

func TestStartConversationGeneratesID(t *testing.T) {
	e, _, store := newEngine(t)

	resp, err := e.StartConversation(context.Background(), StartRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Contains(t, resp.Reply, "Welcome")

	state, err := store.Load(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, RoleAssistant, state.Messages[0].Role)
}

func TestStartConversationIdempotentForExisting(t *testing.T) {
	e, _, store := newEngine(t)

	first, err := e.StartConversation(context.Background(), StartRequest{ConversationID: "conv-1"})
	require.NoError(t, err)

	again, err := e.StartConversation(context.Background(), StartRequest{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, again.ConversationID)

	state, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 1)
}

func TestProcessMessageRejectsEmpty(t *testing.T) {
	e, _, _ := newEngine(t)
	_, err := e.ProcessMessage(context.Background(), MessageRequest{ConversationID: "conv-1"})
	assert.Error(t, err)
}

func TestGetHistoryUnknownConversation(t *testing.T) {
	e, _, _ := newEngine(t)
	_, err := e.GetHistory(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestProcessMessageEndToEnd(t *testing.T) {
	e, f, _ := newEngine(t)
	f.classifier.intent = IntentGoodbye

	start, err := e.StartConversation(context.Background(), StartRequest{})
	require.NoError(t, err)

	resp, err := e.ProcessMessage(context.Background(), MessageRequest{
		ConversationID: start.ConversationID,
		Message:        "bye",
	})
	require.NoError(t, err)
	assert.Equal(t, string(NodeEnd), resp.CurrentNode)

	history, err := e.GetHistory(context.Background(), start.ConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}
