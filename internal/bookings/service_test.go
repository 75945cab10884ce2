package bookings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverland/property-agent/internal/leads"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, toEmail)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func seedLead(t *testing.T, repo leads.Repository, conversationID string) leads.Lead {
	t.Helper()
	lead, err := repo.Upsert(context.Background(), leads.Lead{
		ConversationID: conversationID,
		FirstName:      "Sarah",
		LastName:       "Chen",
		Email:          "sarah@example.com",
		Source:         "chat",
	})
	require.NoError(t, err)
	return lead
}

func TestBookCreatesOnce(t *testing.T) {
	leadRepo := leads.NewInMemoryRepository()
	seedLead(t, leadRepo, "conv-1")
	sender := &recordingSender{}
	svc := NewService(NewInMemoryRepository(), leadRepo, sender, nil)

	first, err := svc.Book(context.Background(), "conv-1", 7, "Marina Heights")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, first.Status)

	second, err := svc.Book(context.Background(), "conv-1", 7, "Marina Heights")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	// Only the creating call sends email; give the goroutine a moment.
	assert.Eventually(t, func() bool { return sender.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestBookDifferentProjectsBothSucceed(t *testing.T) {
	leadRepo := leads.NewInMemoryRepository()
	seedLead(t, leadRepo, "conv-2")
	svc := NewService(NewInMemoryRepository(), leadRepo, nil, nil)

	a, err := svc.Book(context.Background(), "conv-2", 1, "Palm View")
	require.NoError(t, err)
	b, err := svc.Book(context.Background(), "conv-2", 2, "Harbor Gate")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestBookWithoutLeadFails(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), leads.NewInMemoryRepository(), nil, nil)
	_, err := svc.Book(context.Background(), "conv-missing", 5, "Palm View")
	assert.ErrorIs(t, err, leads.ErrNotFound)
}

func TestConcurrentBookSingleRow(t *testing.T) {
	leadRepo := leads.NewInMemoryRepository()
	seedLead(t, leadRepo, "conv-3")
	repo := NewInMemoryRepository()
	svc := NewService(repo, leadRepo, nil, nil)

	var wg sync.WaitGroup
	ids := make(chan int64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := svc.Book(context.Background(), "conv-3", 9, "Palm View")
			assert.NoError(t, err)
			ids <- b.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := int64(-1)
	for id := range ids {
		if first == -1 {
			first = id
		}
		assert.Equal(t, first, id)
	}
}
