package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCreateIdempotentInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs("conv-1", int64(7), "Marina Heights", int64(3), StatusConfirmed).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	repo := NewPostgresRepositoryWithQuerier(mock)
	got, created, err := repo.CreateIdempotent(context.Background(), Booking{
		ConversationID: "conv-1",
		ProjectID:      7,
		ProjectName:    "Marina Heights",
		LeadID:         3,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 11, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateIdempotentConflictReturnsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs("conv-1", int64(7), "Marina Heights", int64(3), StatusConfirmed).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id, conversation_id, project_id").
		WithArgs("conv-1", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "conversation_id", "project_id", "project_name", "lead_id", "status", "created_at",
		}).AddRow(int64(5), "conv-1", int64(7), "Marina Heights", int64(3), StatusConfirmed, now))

	repo := NewPostgresRepositoryWithQuerier(mock)
	got, created, err := repo.CreateIdempotent(context.Background(), Booking{
		ConversationID: "conv-1",
		ProjectID:      7,
		ProjectName:    "Marina Heights",
		LeadID:         3,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.EqualValues(t, 5, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
