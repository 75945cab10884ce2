// Package agent implements the conversation engine: intent classification,
// preference extraction, the routing state machine, and turn processing with
// versioned persistence.
package agent

import (
	"strings"
	"time"

	"github.com/silverland/property-agent/internal/matching"
)

// Message roles mirror the chat transcript stored per conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry. The transcript is append-only.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Preferences holds the buyer's structured search criteria. Fields merge
// monotonically: a newly extracted non-empty value overwrites the old one,
// absence never clears anything.
type Preferences struct {
	City         string   `json:"city,omitempty"`
	Country      string   `json:"country,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	BudgetMin    *float64 `json:"budget_min,omitempty"`
	BudgetMax    *float64 `json:"budget_max,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`

	// BudgetWaived is set when the user explicitly declines to give a budget
	// ("no budget", "money is not an issue"). It satisfies the budget half of
	// completeness and clears any previously stated range.
	BudgetWaived bool `json:"budget_waived,omitempty"`
}

// Merge applies update on top of p per the monotonic rule. A set BudgetWaived
// clears the numeric range; a later numeric budget un-waives it.
func (p *Preferences) Merge(update Preferences) {
	if update.City != "" {
		p.City = update.City
	}
	if update.Country != "" {
		p.Country = update.Country
	}
	if update.Bedrooms != nil {
		p.Bedrooms = update.Bedrooms
	}
	if update.PropertyType != "" {
		p.PropertyType = update.PropertyType
	}
	if update.BudgetWaived {
		p.BudgetWaived = true
		p.BudgetMin = nil
		p.BudgetMax = nil
		return
	}
	if update.BudgetMin != nil {
		p.BudgetMin = update.BudgetMin
		p.BudgetWaived = false
	}
	if update.BudgetMax != nil {
		p.BudgetMax = update.BudgetMax
		p.BudgetWaived = false
	}
}

// Complete reports whether enough is known to search: a city plus either a
// bedroom count or a budget ceiling (a waived budget counts).
func (p Preferences) Complete() bool {
	if p.City == "" {
		return false
	}
	return p.Bedrooms != nil || p.BudgetMax != nil || p.BudgetWaived
}

// Empty reports whether no preference field is set at all.
func (p Preferences) Empty() bool {
	return p.City == "" && p.Country == "" && p.Bedrooms == nil &&
		p.BudgetMin == nil && p.BudgetMax == nil && p.PropertyType == "" &&
		!p.BudgetWaived
}

// LeadData holds contact fields gathered across turns, merged monotonically
// like preferences.
type LeadData struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Merge applies non-empty fields from update on top of l.
func (l *LeadData) Merge(update LeadData) {
	if update.FirstName != "" {
		l.FirstName = update.FirstName
	}
	if update.LastName != "" {
		l.LastName = update.LastName
	}
	if update.Email != "" {
		l.Email = update.Email
	}
	if update.Phone != "" {
		l.Phone = update.Phone
	}
}

// Empty reports whether no contact field is set.
func (l LeadData) Empty() bool {
	return l.FirstName == "" && l.LastName == "" && l.Email == "" && l.Phone == ""
}

// State is the full per-conversation record. The turn processor is its only
// writer; it is loaded, mutated through one router run, and saved once.
type State struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`

	Preferences         Preferences `json:"preferences"`
	PreferencesComplete bool        `json:"preferences_complete"`

	// SearchResults is replaced wholesale on each successful search.
	SearchResults []matching.Match `json:"search_results,omitempty"`

	Lead LeadData `json:"lead_data"`

	SelectedProjectID   *int64 `json:"selected_project_id,omitempty"`
	SelectedProjectName string `json:"selected_project_name,omitempty"`
	BookingID           *int64 `json:"booking_id,omitempty"`

	// PhoneAsked records that the optional phone prompt was issued, so it is
	// asked at most once per conversation.
	PhoneAsked bool `json:"phone_asked,omitempty"`

	// Routing bookkeeping, reset at the start of every turn.
	CurrentNode string `json:"current_node,omitempty"`
	UserIntent  string `json:"user_intent,omitempty"`
	RetryCount  int    `json:"retry_count"`

	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version backs optimistic concurrency in the state store.
	Version int64 `json:"version"`
}

// NewState creates the record for a fresh conversation.
func NewState(conversationID string) *State {
	now := time.Now().UTC()
	return &State{
		ConversationID: conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AppendMessage adds a transcript entry. Entries are never reordered or
// truncated.
func (s *State) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// LastUserMessage returns the most recent user entry, or "".
func (s *State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// RecentMessages returns up to n trailing transcript entries.
func (s *State) RecentMessages(n int) []Message {
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// UserTurns counts user entries in the transcript.
func (s *State) UserTurns() int {
	count := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			count++
		}
	}
	return count
}

// RecomputeCompleteness refreshes the derived completeness flag.
func (s *State) RecomputeCompleteness() {
	s.PreferencesComplete = s.Preferences.Complete()
}

// FindPresentedProject matches a user mention against the last search
// results by project name. Any significant name word counts as a mention,
// so "the palm one" selects Palm View. Returns the listing ID and name, or
// false.
func (s *State) FindPresentedProject(mention string) (int64, string, bool) {
	mention = strings.ToLower(mention)
	for _, m := range s.SearchResults {
		name := strings.ToLower(m.Listing.ProjectName)
		for _, word := range strings.Fields(name) {
			if len(word) > 2 && strings.Contains(mention, word) {
				return m.Listing.ID, m.Listing.ProjectName, true
			}
		}
	}
	return 0, "", false
}

// RecentUserText joins the user entries of the trailing n messages, so
// project mentions from a couple of turns back still count.
func (s *State) RecentUserText(n int) string {
	var parts []string
	for _, m := range s.RecentMessages(n) {
		if m.Role == RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, " ")
}
