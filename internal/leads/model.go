// Package leads stores qualified buyer contacts captured during conversations
// and validates them before anything downstream may act on them.
package leads

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no lead exists for the requested key.
var ErrNotFound = errors.New("leads: not found")

// Lead is a buyer contact record. One lead exists per conversation; repeated
// captures update it in place.
type Lead struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	City           string    `json:"city,omitempty"`
	Bedrooms       *int      `json:"bedrooms,omitempty"`
	BudgetMax      *float64  `json:"budget_max,omitempty"`
	PropertyType   string    `json:"property_type,omitempty"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
