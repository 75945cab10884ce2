package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverland/property-agent/internal/leads"
)

func newProcessorFixture(t *testing.T) (*TurnProcessor, *routerFixture, *MemoryStateStore) {
	t.Helper()
	f := newRouterFixture(t)
	store := NewMemoryStateStore()
	p := NewTurnProcessor(store, f.router, nil, 0)
	return p, f, store
}

func TestProcessTurnPersistsOnce(t *testing.T) {
	p, f, store := newProcessorFixture(t)
	f.classifier.intent = IntentSharePreferences
	f.extractor.result = Preferences{City: "Chicago"}

	reply, state, err := p.ProcessTurn(context.Background(), "conv-1", "somewhere in Chicago")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.EqualValues(t, 1, state.Version)

	saved, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Chicago", saved.Preferences.City)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, RoleUser, saved.Messages[0].Role)
	assert.Equal(t, RoleAssistant, saved.Messages[1].Role)
	assert.Equal(t, 1, saved.TurnCount)
}

func TestProcessTurnNothingPersistedOnFailure(t *testing.T) {
	p, f, store := newProcessorFixture(t)
	f.classifier.intent = IntentSharePreferences

	// Force an unrecoverable router failure via a broken step table entry.
	f.router.steps[NodeDiscoverPreferences] = func(ctx context.Context, tr *turn) (Node, error) {
		return Node("no_such_node"), nil
	}

	_, _, err := p.ProcessTurn(context.Background(), "conv-1", "hello there, city talk")
	require.Error(t, err)

	_, err = store.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestProcessTurnResetsRetryCount(t *testing.T) {
	p, f, store := newProcessorFixture(t)
	f.classifier.intent = IntentGoodbye

	seed := NewState("conv-1")
	seed.RetryCount = 2
	seed.AppendMessage(RoleUser, "earlier message")
	require.NoError(t, store.Save(context.Background(), seed))

	_, state, err := p.ProcessTurn(context.Background(), "conv-1", "bye")
	require.NoError(t, err)
	assert.Zero(t, state.RetryCount)
}

func TestProcessTurnRequiresConversationID(t *testing.T) {
	p, _, _ := newProcessorFixture(t)
	_, _, err := p.ProcessTurn(context.Background(), "", "hello")
	assert.Error(t, err)
}

func TestProcessTurnSerializedPerConversation(t *testing.T) {
	p, f, store := newProcessorFixture(t)
	f.classifier.intent = IntentGoodbye

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := p.ProcessTurn(context.Background(), "conv-1", fmt.Sprintf("bye %d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	saved, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	// Every turn appended exactly one user and one assistant message.
	assert.Len(t, saved.Messages, 16)
	assert.Equal(t, 8, saved.TurnCount)
	assert.EqualValues(t, 8, saved.Version)
}

func TestProcessTurnReappliesOnVersionConflict(t *testing.T) {
	f := newRouterFixture(t)
	f.classifier.intent = IntentGoodbye
	store := &conflictingStore{MemoryStateStore: NewMemoryStateStore()}
	p := NewTurnProcessor(store, f.router, nil, 0)

	_, _, err := p.ProcessTurn(context.Background(), "conv-1", "bye")
	require.NoError(t, err)
	assert.Equal(t, 2, store.saveCalls)
}

// conflictingStore fails the first Save with a version conflict.
type conflictingStore struct {
	*MemoryStateStore
	saveCalls int
}

func (s *conflictingStore) Save(ctx context.Context, state *State) error {
	s.saveCalls++
	if s.saveCalls == 1 {
		return ErrVersionConflict
	}
	return s.MemoryStateStore.Save(ctx, state)
}

func TestProcessTurnLeadFlowAcrossTurns(t *testing.T) {
	p, f, _ := newProcessorFixture(t)
	f.classifier.intent = IntentProvideContact

	_, state, err := p.ProcessTurn(context.Background(), "conv-9", "my name is Omar Haddad")
	require.NoError(t, err)
	assert.Equal(t, "Omar", state.Lead.FirstName)

	_, state, err = p.ProcessTurn(context.Background(), "conv-9", "omar@mail.co")
	require.NoError(t, err)
	assert.Equal(t, "omar@mail.co", state.Lead.Email)
	assert.Equal(t, "Haddad", state.Lead.LastName)

	lead, err := f.leadRepo.GetByConversation(context.Background(), "conv-9")
	require.NoError(t, err)
	assert.Equal(t, leads.Lead{
		ID:             lead.ID,
		ConversationID: "conv-9",
		FirstName:      "Omar",
		LastName:       "Haddad",
		Email:          "omar@mail.co",
		Source:         "chat",
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
	}, lead)
}
