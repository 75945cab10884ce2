// Package matching turns loosely-specified buyer preferences into a ranked
// result set. Searches escalate through three tiers (exact, close,
// alternative) and stop at the first tier that produces rows, so callers can
// always tell the user how far the criteria had to be relaxed.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/silverland/property-agent/internal/listings"
	"github.com/silverland/property-agent/pkg/logging"
)

// Tier classifies how closely a match satisfies the stated preferences.
type Tier string

const (
	TierExact       Tier = "exact"
	TierClose       Tier = "close"
	TierAlternative Tier = "alternative"
)

const (
	maxResults = 10

	// budgetStretch is how far the close pass relaxes budget_max.
	budgetStretch = 1.2

	scoreExactCity    = 10.0
	scoreExactBeds    = 8.0
	scoreWithinBudget = 5.0
	scoreDescription  = 2.0
	scoreFeatures     = 1.0
)

// ErrMissingCity is returned when a search is attempted without a city.
var ErrMissingCity = errors.New("matching: city is required")

// Query carries the preference fields the engine searches on.
type Query struct {
	City         string
	Country      string
	Bedrooms     *int
	BudgetMin    *float64
	BudgetMax    *float64
	PropertyType string
}

// Match is one ranked result. Tier must be surfaced to the user whenever it
// is not exact.
type Match struct {
	Listing listings.Listing `json:"listing"`
	Tier    Tier             `json:"match_tier"`
	Score   float64          `json:"relevance_score"`
}

// TextQuerier is the optional text-to-SQL fallback consulted only after all
// three structured tiers come back empty.
type TextQuerier interface {
	Query(ctx context.Context, question string) ([]listings.Listing, error)
}

// Engine executes tiered searches against the listings repository.
type Engine struct {
	repo     listings.Repository
	fallback TextQuerier
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewEngine creates a matching engine. fallback may be nil.
func NewEngine(repo listings.Repository, fallback TextQuerier, logger *logging.Logger) *Engine {
	if repo == nil {
		panic("matching: listings repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		repo:     repo,
		fallback: fallback,
		logger:   logger,
		tracer:   otel.Tracer("propertyagent.internal.matching"),
	}
}

// Search runs the tier cascade and returns up to 10 ranked matches. An empty
// slice means no property matched anywhere; the engine never substitutes
// fabricated results.
func (e *Engine) Search(ctx context.Context, q Query) ([]Match, error) {
	ctx, span := e.tracer.Start(ctx, "matching.search")
	defer span.End()

	if q.City == "" {
		return nil, ErrMissingCity
	}

	for _, pass := range []struct {
		tier   Tier
		filter listings.Filter
	}{
		{TierExact, e.exactFilter(q)},
		{TierClose, e.closeFilter(q)},
		{TierAlternative, e.alternativeFilter(q)},
	} {
		rows, err := e.repo.Search(ctx, pass.filter)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("matching: %s pass failed: %w", pass.tier, err)
		}
		if len(rows) == 0 {
			continue
		}
		span.SetAttributes(
			attribute.String("matching.tier", string(pass.tier)),
			attribute.Int("matching.rows", len(rows)),
		)
		return e.rank(rows, q, pass.tier), nil
	}

	if e.fallback != nil {
		rows, err := e.fallback.Query(ctx, describeQuery(q))
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("matching: text-to-sql fallback failed: %w", err)
		}
		if len(rows) > 0 {
			span.SetAttributes(attribute.String("matching.tier", string(TierAlternative)))
			return e.rank(rows, q, TierAlternative), nil
		}
	}

	e.logger.Info("no matches in any tier", "city", q.City)
	return []Match{}, nil
}

func (e *Engine) exactFilter(q Query) listings.Filter {
	f := listings.Filter{
		City:         q.City,
		PropertyType: q.PropertyType,
		PriceMin:     q.BudgetMin,
		PriceMax:     q.BudgetMax,
	}
	if q.Bedrooms != nil {
		f.Bedrooms = []int{*q.Bedrooms}
	}
	return f
}

func (e *Engine) closeFilter(q Query) listings.Filter {
	f := listings.Filter{
		City:         q.City,
		PropertyType: q.PropertyType,
	}
	if q.Bedrooms != nil {
		b := *q.Bedrooms
		f.Bedrooms = []int{b - 1, b, b + 1}
	}
	if q.BudgetMax != nil {
		stretched := *q.BudgetMax * budgetStretch
		f.PriceMax = &stretched
	}
	return f
}

func (e *Engine) alternativeFilter(q Query) listings.Filter {
	f := e.closeFilter(q)
	f.City = ""
	f.Country = q.Country
	f.ExcludeCity = q.City
	return f
}

// rank scores each listing, sorts descending by score with ascending price as
// the tie-break, and truncates to maxResults. Identical inputs always produce
// identical order.
func (e *Engine) rank(rows []listings.Listing, q Query, tier Tier) []Match {
	matches := make([]Match, 0, len(rows))
	for _, l := range rows {
		matches = append(matches, Match{
			Listing: l,
			Tier:    tier,
			Score:   score(l, q),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		pi, pj := priceOrMax(matches[i].Listing), priceOrMax(matches[j].Listing)
		if pi != pj {
			return pi < pj
		}
		return matches[i].Listing.ID < matches[j].Listing.ID
	})

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

func score(l listings.Listing, q Query) float64 {
	var s float64
	if strings.EqualFold(l.City, q.City) {
		s += scoreExactCity
	}
	if q.Bedrooms != nil && l.Bedrooms != nil && *l.Bedrooms == *q.Bedrooms {
		s += scoreExactBeds
	}
	if q.BudgetMax != nil && l.PriceUSD != nil && *l.PriceUSD <= *q.BudgetMax {
		s += scoreWithinBudget
	}
	if l.Description != "" {
		s += scoreDescription
	}
	if len(l.Features) > 0 {
		s += scoreFeatures
	}
	return s
}

func priceOrMax(l listings.Listing) float64 {
	if l.PriceUSD == nil {
		// Unpriced listings sort after priced ones at equal score.
		return 1e15
	}
	return *l.PriceUSD
}

// describeQuery renders preferences as a natural-language question for the
// text-to-SQL fallback.
func describeQuery(q Query) string {
	desc := "properties"
	if q.PropertyType != "" {
		desc = q.PropertyType + " " + desc
	}
	if q.Bedrooms != nil {
		desc = fmt.Sprintf("%d-bedroom %s", *q.Bedrooms, desc)
	}
	if q.City != "" {
		desc += " in or near " + q.City
	}
	if q.BudgetMax != nil {
		desc += fmt.Sprintf(" under $%.0f", *q.BudgetMax*budgetStretch)
	}
	return desc
}
