package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/silverland/property-agent/internal/llm"
	"github.com/silverland/property-agent/pkg/logging"
)

// ErrUnsafeSQL is returned when the generated statement fails the guard.
var ErrUnsafeSQL = errors.New("listings: generated SQL rejected by guard")

const textToSQLPrompt = `You translate property-search questions into a single PostgreSQL SELECT statement.

Schema:
  listings(id BIGINT, project_name TEXT, city TEXT, country TEXT, property_type TEXT,
           bedrooms INT, bathrooms INT, price_usd NUMERIC, area_sqm NUMERIC,
           completion_status TEXT, features TEXT[], description TEXT)

Rules:
- SELECT the columns id, project_name, city, country, property_type, bedrooms,
  bathrooms, price_usd, area_sqm, completion_status, features, description in that order.
- Query ONLY the listings table. Never write, alter, or join other tables.
- Always include LIMIT 20.
- Respond with the SQL statement only, no markdown and no explanation.

Question: %s`

// TextToSQL converts a natural-language property question into a guarded
// SELECT against the listings table. It is the last-resort search path when
// the structured tiers find nothing; it never invents rows.
type TextToSQL struct {
	client llm.Client
	db     pgxQuerier
	logger *logging.Logger
}

// NewTextToSQL wires the generator. db may come from pgxpool or a mock.
func NewTextToSQL(client llm.Client, db pgxQuerier, logger *logging.Logger) *TextToSQL {
	if client == nil {
		panic("listings: llm client required")
	}
	if db == nil {
		panic("listings: querier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TextToSQL{client: client, db: db, logger: logger}
}

// Query generates SQL for the question and executes it. Zero rows is a
// successful empty result; only generation/execution problems are errors.
func (t *TextToSQL) Query(ctx context.Context, question string) ([]Listing, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("listings: empty text-to-sql question")
	}

	resp, err := t.client.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(textToSQLPrompt, question)}},
		MaxTokens:   300,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("listings: sql generation failed: %w", err)
	}

	sql, err := SanitizeGeneratedSQL(resp.Text)
	if err != nil {
		t.logger.Warn("rejected generated SQL", "error", err, "sql", resp.Text)
		return nil, err
	}

	rows, err := t.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("listings: generated query failed: %w", err)
	}
	defer rows.Close()

	results, err := scanListings(rows)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("text-to-sql query executed", "rows", len(results))
	return results, nil
}

// SanitizeGeneratedSQL strips markdown fences and enforces the guard: one
// statement, SELECT-only, listings table only.
func SanitizeGeneratedSQL(raw string) (string, error) {
	sql := strings.TrimSpace(raw)
	if strings.HasPrefix(sql, "```") {
		sql = strings.TrimPrefix(sql, "```sql")
		sql = strings.TrimPrefix(sql, "```")
		if idx := strings.Index(sql, "```"); idx >= 0 {
			sql = sql[:idx]
		}
		sql = strings.TrimSpace(sql)
	}
	sql = strings.TrimSuffix(sql, ";")

	lower := strings.ToLower(sql)
	if !strings.HasPrefix(lower, "select") {
		return "", fmt.Errorf("%w: not a SELECT", ErrUnsafeSQL)
	}
	if strings.Contains(sql, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrUnsafeSQL)
	}
	if !strings.Contains(lower, "from listings") {
		return "", fmt.Errorf("%w: must query listings", ErrUnsafeSQL)
	}
	for _, kw := range []string{"insert", "update", "delete", "drop", "alter", "truncate", "grant", "create"} {
		if containsWord(lower, kw) {
			return "", fmt.Errorf("%w: contains %q", ErrUnsafeSQL, kw)
		}
	}
	return sql, nil
}

func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordChar(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(s) || !isWordChar(s[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
