package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverland/property-agent/internal/listings"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func listing(id int64, city string, beds int, price float64) listings.Listing {
	return listings.Listing{
		ID:          id,
		ProjectName: "Project " + city,
		City:        city,
		Country:     "USA",
		Bedrooms:    intPtr(beds),
		PriceUSD:    floatPtr(price),
		Description: "A description",
		Features:    []string{"pool"},
	}
}

// countingRepo records every filter it sees so tests can assert which passes ran.
type countingRepo struct {
	inner   listings.Repository
	filters []listings.Filter
}

func (r *countingRepo) Search(ctx context.Context, f listings.Filter) ([]listings.Listing, error) {
	r.filters = append(r.filters, f)
	return r.inner.Search(ctx, f)
}

func TestExactPassStopsEscalation(t *testing.T) {
	repo := &countingRepo{inner: listings.NewInMemoryRepository([]listings.Listing{
		listing(1, "Chicago", 2, 750000),
		listing(2, "Chicago", 3, 900000),
	})}
	engine := NewEngine(repo, nil, nil)

	got, err := engine.Search(context.Background(), Query{
		City:      "Chicago",
		Bedrooms:  intPtr(2),
		BudgetMax: floatPtr(1000000),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TierExact, got[0].Tier)
	// Only the exact pass may run once it returns rows.
	assert.Len(t, repo.filters, 1)
}

func TestCloseAndAlternativeRelaxation(t *testing.T) {
	// Scenario: exact search for Miami 5br under 2M finds nothing; a 4br at
	// 2.3M exists, reachable only with beds {4,5,6} and budget*1.2.
	repo := &countingRepo{inner: listings.NewInMemoryRepository([]listings.Listing{
		listing(1, "Miami", 4, 2300000),
		listing(2, "Orlando", 5, 1800000),
	})}
	engine := NewEngine(repo, nil, nil)

	got, err := engine.Search(context.Background(), Query{
		City:      "Miami",
		Country:   "USA",
		Bedrooms:  intPtr(5),
		BudgetMax: floatPtr(2000000),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TierClose, got[0].Tier)
	assert.EqualValues(t, 1, got[0].Listing.ID)

	require.Len(t, repo.filters, 2)
	assert.Equal(t, []int{4, 5, 6}, repo.filters[1].Bedrooms)
	require.NotNil(t, repo.filters[1].PriceMax)
	assert.InDelta(t, 2400000, *repo.filters[1].PriceMax, 0.01)
}

func TestAlternativeDropsCity(t *testing.T) {
	repo := &countingRepo{inner: listings.NewInMemoryRepository([]listings.Listing{
		listing(2, "Orlando", 5, 1800000),
	})}
	engine := NewEngine(repo, nil, nil)

	got, err := engine.Search(context.Background(), Query{
		City:      "Miami",
		Country:   "USA",
		Bedrooms:  intPtr(5),
		BudgetMax: floatPtr(2000000),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TierAlternative, got[0].Tier)
	assert.Equal(t, "Orlando", got[0].Listing.City)

	require.Len(t, repo.filters, 3)
	alt := repo.filters[2]
	assert.Empty(t, alt.City)
	assert.Equal(t, "USA", alt.Country)
	assert.Equal(t, "Miami", alt.ExcludeCity)
}

func TestAllTiersEmptyReturnsEmpty(t *testing.T) {
	repo := listings.NewInMemoryRepository(nil)
	engine := NewEngine(repo, nil, nil)

	got, err := engine.Search(context.Background(), Query{City: "Nowhere"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMissingCityRejected(t *testing.T) {
	engine := NewEngine(listings.NewInMemoryRepository(nil), nil, nil)
	_, err := engine.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrMissingCity)
}

func TestRankingOrderAndTieBreak(t *testing.T) {
	cheap := listing(1, "Dubai", 2, 500000)
	pricey := listing(2, "Dubai", 2, 900000)
	wrongBeds := listing(3, "Dubai", 3, 400000)
	noExtras := listings.Listing{
		ID: 4, ProjectName: "Bare", City: "Dubai", Country: "UAE",
		Bedrooms: intPtr(2), PriceUSD: floatPtr(450000),
	}
	repo := listings.NewInMemoryRepository([]listings.Listing{pricey, wrongBeds, cheap, noExtras})
	engine := NewEngine(repo, nil, nil)

	got, err := engine.Search(context.Background(), Query{
		City:      "Dubai",
		Bedrooms:  nil,
		BudgetMax: floatPtr(1000000),
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	// The three listings with descriptions and features tie on score, so
	// ascending price orders them; the bare listing scores lowest.
	assert.EqualValues(t, 3, got[0].Listing.ID)
	assert.EqualValues(t, 1, got[1].Listing.ID)
	assert.EqualValues(t, 2, got[2].Listing.ID)
	assert.EqualValues(t, 4, got[3].Listing.ID)

	assert.Equal(t, 10.0+5.0+2.0+1.0, got[0].Score)
	assert.Equal(t, 10.0+5.0, got[3].Score)
}

func TestSearchDeterministic(t *testing.T) {
	repo := listings.NewInMemoryRepository([]listings.Listing{
		listing(5, "Lisbon", 2, 700000),
		listing(3, "Lisbon", 2, 700000),
		listing(8, "Lisbon", 2, 650000),
	})
	engine := NewEngine(repo, nil, nil)
	q := Query{City: "Lisbon", Bedrooms: intPtr(2), BudgetMax: floatPtr(800000)}

	first, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Equal score and price fall back to ID order.
	assert.EqualValues(t, 8, first[0].Listing.ID)
	assert.EqualValues(t, 3, first[1].Listing.ID)
	assert.EqualValues(t, 5, first[2].Listing.ID)
}

func TestTopTenTruncation(t *testing.T) {
	repo := listings.NewInMemoryRepository(nil)
	for i := int64(1); i <= 15; i++ {
		repo.Add(listing(i, "Austin", 2, float64(400000+i*1000)))
	}
	engine := NewEngine(repo, nil, nil)

	got, err := engine.Search(context.Background(), Query{City: "Austin", Bedrooms: intPtr(2)})
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

type stubTextQuerier struct {
	rows []listings.Listing
	err  error
}

func (s *stubTextQuerier) Query(ctx context.Context, question string) ([]listings.Listing, error) {
	return s.rows, s.err
}

func TestTextToSQLFallbackOnlyAfterEmptyTiers(t *testing.T) {
	fallback := &stubTextQuerier{rows: []listings.Listing{listing(9, "Porto", 2, 300000)}}
	engine := NewEngine(listings.NewInMemoryRepository(nil), fallback, nil)

	got, err := engine.Search(context.Background(), Query{City: "Lisbon"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TierAlternative, got[0].Tier)
}

func TestTextToSQLFailureSurfaces(t *testing.T) {
	fallback := &stubTextQuerier{err: errors.New("generation failed")}
	engine := NewEngine(listings.NewInMemoryRepository(nil), fallback, nil)

	_, err := engine.Search(context.Background(), Query{City: "Lisbon"})
	require.Error(t, err)
}
