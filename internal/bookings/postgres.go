package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxRowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings in the bookings table. The unique index
// on (conversation_id, project_id) enforces idempotency under concurrency.
type PostgresRepository struct {
	db pgxRowQuerier
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier exists for tests that substitute a mock.
func NewPostgresRepositoryWithQuerier(db pgxRowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertBookingSQL = `
INSERT INTO bookings (conversation_id, project_id, project_name, lead_id, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (conversation_id, project_id) DO NOTHING
RETURNING id, created_at`

func (r *PostgresRepository) CreateIdempotent(ctx context.Context, b Booking) (Booking, bool, error) {
	if b.Status == "" {
		b.Status = StatusConfirmed
	}
	err := r.db.QueryRow(ctx, insertBookingSQL,
		b.ConversationID, b.ProjectID, b.ProjectName, b.LeadID, b.Status,
	).Scan(&b.ID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict clause swallowed the insert; fetch the winner.
		existing, getErr := r.GetByConversationAndProject(ctx, b.ConversationID, b.ProjectID)
		if getErr != nil {
			return Booking{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return Booking{}, false, fmt.Errorf("bookings: create: %w", err)
	}
	return b, true, nil
}

const getBookingSQL = `
SELECT id, conversation_id, project_id, project_name, lead_id, status, created_at
FROM bookings
WHERE conversation_id = $1 AND project_id = $2`

func (r *PostgresRepository) GetByConversationAndProject(ctx context.Context, conversationID string, projectID int64) (Booking, error) {
	var b Booking
	err := r.db.QueryRow(ctx, getBookingSQL, conversationID, projectID).Scan(
		&b.ID, &b.ConversationID, &b.ProjectID, &b.ProjectName, &b.LeadID, &b.Status, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("bookings: get: %w", err)
	}
	return b, nil
}
