package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/silverland/property-agent/internal/listings"
	"github.com/silverland/property-agent/internal/matching"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestPreferencesMergeMonotonic(t *testing.T) {
	var p Preferences

	p.Merge(Preferences{City: "Chicago", Bedrooms: intPtr(2)})
	assert.Equal(t, "Chicago", p.City)
	assert.Equal(t, 2, *p.Bedrooms)

	// Absent fields never clear existing values.
	p.Merge(Preferences{BudgetMax: floatPtr(1000000)})
	assert.Equal(t, "Chicago", p.City)
	assert.Equal(t, 2, *p.Bedrooms)
	assert.Equal(t, 1000000.0, *p.BudgetMax)

	// A new value for a single-valued slot replaces the old one outright.
	p.Merge(Preferences{City: "Dubai"})
	assert.Equal(t, "Dubai", p.City)
	assert.Equal(t, 2, *p.Bedrooms)
}

func TestPreferencesMergeLastValueWins(t *testing.T) {
	var p Preferences
	updates := []Preferences{
		{City: "Miami"},
		{Bedrooms: intPtr(3)},
		{City: "Austin", BudgetMax: floatPtr(500000)},
		{Bedrooms: intPtr(4)},
	}
	for _, u := range updates {
		p.Merge(u)
	}
	assert.Equal(t, "Austin", p.City)
	assert.Equal(t, 4, *p.Bedrooms)
	assert.Equal(t, 500000.0, *p.BudgetMax)
}

func TestPreferencesBudgetWaiver(t *testing.T) {
	var p Preferences
	p.Merge(Preferences{City: "Dubai", BudgetMax: floatPtr(800000)})

	p.Merge(Preferences{BudgetWaived: true})
	assert.True(t, p.BudgetWaived)
	assert.Nil(t, p.BudgetMax)
	assert.True(t, p.Complete())

	// A later concrete budget un-waives.
	p.Merge(Preferences{BudgetMax: floatPtr(900000)})
	assert.False(t, p.BudgetWaived)
	assert.Equal(t, 900000.0, *p.BudgetMax)
}

func TestPreferencesComplete(t *testing.T) {
	tests := []struct {
		name string
		p    Preferences
		want bool
	}{
		{"empty", Preferences{}, false},
		{"city only", Preferences{City: "Chicago"}, false},
		{"bedrooms only", Preferences{Bedrooms: intPtr(2)}, false},
		{"budget only", Preferences{BudgetMax: floatPtr(500000)}, false},
		{"city and bedrooms", Preferences{City: "Chicago", Bedrooms: intPtr(2)}, true},
		{"city and budget", Preferences{City: "Chicago", BudgetMax: floatPtr(500000)}, true},
		{"city and waiver", Preferences{City: "Chicago", BudgetWaived: true}, true},
		{"city and budget_min only", Preferences{City: "Chicago", BudgetMin: floatPtr(100000)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Complete())
		})
	}
}

func TestLeadDataMerge(t *testing.T) {
	var l LeadData
	l.Merge(LeadData{FirstName: "Sarah"})
	l.Merge(LeadData{Email: "sarah@example.com"})
	l.Merge(LeadData{FirstName: "Sara", LastName: "Chen"})

	assert.Equal(t, "Sara", l.FirstName)
	assert.Equal(t, "Chen", l.LastName)
	assert.Equal(t, "sarah@example.com", l.Email)
}

func TestStateTranscriptHelpers(t *testing.T) {
	s := NewState("conv-1")
	s.AppendMessage(RoleAssistant, "Hello!")
	s.AppendMessage(RoleUser, "Hi")
	s.AppendMessage(RoleAssistant, "Which city?")
	s.AppendMessage(RoleUser, "Chicago")

	assert.Equal(t, "Chicago", s.LastUserMessage())
	assert.Equal(t, 2, s.UserTurns())
	assert.Len(t, s.RecentMessages(3), 3)
	assert.Len(t, s.RecentMessages(10), 4)
}

func TestFindPresentedProject(t *testing.T) {
	s := NewState("conv-1")
	s.SearchResults = []matching.Match{
		{Listing: listings.Listing{ID: 7, ProjectName: "Marina Heights"}},
		{Listing: listings.Listing{ID: 9, ProjectName: "Palm View"}},
	}

	id, name, ok := s.FindPresentedProject("I really like the Palm View one")
	assert.True(t, ok)
	assert.EqualValues(t, 9, id)
	assert.Equal(t, "Palm View", name)

	// A single significant word of the name is enough.
	id, name, ok = s.FindPresentedProject("i like the palm one")
	assert.True(t, ok)
	assert.EqualValues(t, 9, id)
	assert.Equal(t, "Palm View", name)

	_, _, ok = s.FindPresentedProject("what about something else")
	assert.False(t, ok)
}
