// Package bookings records viewing appointments for properties a buyer has
// committed to. Creation is idempotent per conversation and project so a
// retried turn never double-books.
package bookings

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no booking exists for the requested key.
var ErrNotFound = errors.New("bookings: not found")

const StatusConfirmed = "confirmed"

// Booking is one confirmed viewing request.
type Booking struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ProjectID      int64     `json:"project_id"`
	ProjectName    string    `json:"project_name"`
	LeadID         int64     `json:"lead_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
