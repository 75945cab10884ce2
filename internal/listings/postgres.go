package listings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSearchLimit = 50

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository reads the listings catalogue from Postgres.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("listings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting mocks for tests.
func NewPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Search builds a parameterized query from the filter. Empty filters match
// the whole catalogue up to the limit.
func (r *PostgresRepository) Search(ctx context.Context, f Filter) ([]Listing, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.City != "" {
		where = append(where, "LOWER(city) = LOWER("+arg(f.City)+")")
	}
	if f.Country != "" {
		where = append(where, "LOWER(country) = LOWER("+arg(f.Country)+")")
	}
	if f.ExcludeCity != "" {
		where = append(where, "LOWER(city) <> LOWER("+arg(f.ExcludeCity)+")")
	}
	if len(f.Bedrooms) > 0 {
		where = append(where, "bedrooms = ANY("+arg(f.Bedrooms)+")")
	}
	if f.PriceMax != nil {
		where = append(where, "price_usd <= "+arg(*f.PriceMax))
	}
	if f.PriceMin != nil {
		where = append(where, "price_usd >= "+arg(*f.PriceMin))
	}
	if f.PropertyType != "" {
		where = append(where, "LOWER(property_type) = LOWER("+arg(f.PropertyType)+")")
	}

	query := `
		SELECT id, project_name, city, country, property_type, bedrooms, bathrooms,
		       price_usd, area_sqm, completion_status, features, COALESCE(description, '')
		FROM listings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query += " ORDER BY id LIMIT " + arg(limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listings: search failed: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

func scanListings(rows pgx.Rows) ([]Listing, error) {
	var out []Listing
	for rows.Next() {
		var (
			l            Listing
			propertyType *string
			completion   *string
		)
		if err := rows.Scan(
			&l.ID, &l.ProjectName, &l.City, &l.Country, &propertyType,
			&l.Bedrooms, &l.Bathrooms, &l.PriceUSD, &l.AreaSqm,
			&completion, &l.Features, &l.Description,
		); err != nil {
			return nil, fmt.Errorf("listings: scan failed: %w", err)
		}
		if propertyType != nil {
			l.PropertyType = *propertyType
		}
		if completion != nil {
			l.CompletionStatus = *completion
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listings: rows failed: %w", err)
	}
	return out, nil
}
