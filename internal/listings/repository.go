package listings

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Repository is the query surface the matching engine depends on. A query
// that matches nothing returns an empty slice, never an error.
type Repository interface {
	Search(ctx context.Context, f Filter) ([]Listing, error)
}

// InMemoryRepository holds listings in memory. Used by tests and local
// development without Postgres.
type InMemoryRepository struct {
	mu       sync.RWMutex
	listings []Listing
}

// NewInMemoryRepository creates a repository seeded with the given listings.
func NewInMemoryRepository(seed []Listing) *InMemoryRepository {
	r := &InMemoryRepository{}
	r.listings = append(r.listings, seed...)
	return r
}

// Add appends a listing to the catalogue.
func (r *InMemoryRepository) Add(l Listing) {
	r.mu.Lock()
	r.listings = append(r.listings, l)
	r.mu.Unlock()
}

// Search applies the filter in insertion order so results are deterministic.
func (r *InMemoryRepository) Search(ctx context.Context, f Filter) ([]Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Listing
	for _, l := range r.listings {
		if !matches(l, f) {
			continue
		}
		out = append(out, l)
	}

	// Stable order by ID keeps identical snapshots producing identical results.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(l Listing, f Filter) bool {
	if f.City != "" && !strings.EqualFold(l.City, f.City) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(l.Country, f.Country) {
		return false
	}
	if f.ExcludeCity != "" && strings.EqualFold(l.City, f.ExcludeCity) {
		return false
	}
	if len(f.Bedrooms) > 0 {
		if l.Bedrooms == nil {
			return false
		}
		found := false
		for _, b := range f.Bedrooms {
			if *l.Bedrooms == b {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PriceMax != nil {
		if l.PriceUSD == nil || *l.PriceUSD > *f.PriceMax {
			return false
		}
	}
	if f.PriceMin != nil {
		if l.PriceUSD == nil || *l.PriceUSD < *f.PriceMin {
			return false
		}
	}
	if f.PropertyType != "" && !strings.EqualFold(l.PropertyType, f.PropertyType) {
		return false
	}
	return true
}
