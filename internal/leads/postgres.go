package leads

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

// PostgresRepository stores leads in the leads table. The unique index on
// conversation_id backs the upsert.
type PostgresRepository struct {
	db pgxRowQuerier
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier exists for tests that substitute a mock.
func NewPostgresRepositoryWithQuerier(db pgxRowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const upsertLeadSQL = `
INSERT INTO leads (
    conversation_id, first_name, last_name, email, phone,
    city, bedrooms, budget_max, property_type, source
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (conversation_id) DO UPDATE SET
    first_name    = EXCLUDED.first_name,
    last_name     = EXCLUDED.last_name,
    email         = EXCLUDED.email,
    phone         = EXCLUDED.phone,
    city          = EXCLUDED.city,
    bedrooms      = EXCLUDED.bedrooms,
    budget_max    = EXCLUDED.budget_max,
    property_type = EXCLUDED.property_type,
    updated_at    = now()
RETURNING id, created_at, updated_at`

func (r *PostgresRepository) Upsert(ctx context.Context, l Lead) (Lead, error) {
	err := r.db.QueryRow(ctx, upsertLeadSQL,
		l.ConversationID, l.FirstName, l.LastName, l.Email, l.Phone,
		l.City, l.Bedrooms, l.BudgetMax, l.PropertyType, l.Source,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lead{}, fmt.Errorf("leads: upsert: %w", err)
	}
	return l, nil
}

const getLeadSQL = `
SELECT id, conversation_id, first_name, last_name, email, phone,
       city, bedrooms, budget_max, property_type, source,
       created_at, updated_at
FROM leads
WHERE conversation_id = $1`

func (r *PostgresRepository) GetByConversation(ctx context.Context, conversationID string) (Lead, error) {
	var l Lead
	err := r.db.QueryRow(ctx, getLeadSQL, conversationID).Scan(
		&l.ID, &l.ConversationID, &l.FirstName, &l.LastName, &l.Email, &l.Phone,
		&l.City, &l.Bedrooms, &l.BudgetMax, &l.PropertyType, &l.Source,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("leads: get by conversation: %w", err)
	}
	return l, nil
}
