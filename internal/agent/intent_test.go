package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/silverland/property-agent/internal/llm"
)

// stubLLM returns canned responses in order, then repeats the last one.
type stubLLM struct {
	responses []string
	err       error
	calls     int
	requests  []llm.Request
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Response{}, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return llm.Response{Text: s.responses[idx]}, nil
}

func stateWithUserMessage(content string) *State {
	s := NewState("conv-1")
	s.AppendMessage(RoleUser, content)
	return s
}

func TestClassifyReturnsModelLabel(t *testing.T) {
	client := &stubLLM{responses: []string{"share_preferences"}}
	c := NewIntentClassifier(client, "model-x", nil)

	got := c.Classify(context.Background(), stateWithUserMessage("I want a 2BR in Chicago"))
	assert.Equal(t, IntentSharePreferences, got)
}

func TestClassifyFailSafeDefault(t *testing.T) {
	client := &stubLLM{err: errors.New("model unavailable")}
	c := NewIntentClassifier(client, "model-x", nil)

	got := c.Classify(context.Background(), stateWithUserMessage("I want a 2BR in Chicago"))
	assert.Equal(t, IntentOther, got)
}

func TestClassifyGoodbyeWithoutModelCall(t *testing.T) {
	client := &stubLLM{responses: []string{"ask_question"}}
	c := NewIntentClassifier(client, "model-x", nil)

	got := c.Classify(context.Background(), stateWithUserMessage("ok bye, thanks for the help"))
	assert.Equal(t, IntentGoodbye, got)
	assert.Zero(t, client.calls)
}

func TestNormalizeIntent(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
	}{
		{"greeting", IntentGreeting},
		{"  Book_Viewing \n", IntentBookViewing},
		{`"provide_contact"`, IntentProvideContact},
		{"clarify", IntentAskQuestion},
		{"something_new", IntentOther},
		{"", IntentOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeIntent(tt.raw), tt.raw)
	}
}

func TestClassifyContextStartsWithUserMessage(t *testing.T) {
	client := &stubLLM{responses: []string{"ask_question"}}
	c := NewIntentClassifier(client, "model-x", nil)

	s := NewState("conv-1")
	s.AppendMessage(RoleAssistant, "Hello!")
	s.AppendMessage(RoleUser, "What areas do you cover?")

	c.Classify(context.Background(), s)
	assert.Len(t, client.requests, 1)
	msgs := client.requests[0].Messages
	assert.NotEmpty(t, msgs)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
}
