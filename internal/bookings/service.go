package bookings

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/silverland/property-agent/internal/leads"
	"github.com/silverland/property-agent/internal/notify"
	"github.com/silverland/property-agent/pkg/logging"
)

const emailTimeout = 10 * time.Second

// Service creates bookings and fires the confirmation email.
type Service struct {
	repo   Repository
	leads  leads.Repository
	email  notify.EmailSender
	logger *logging.Logger
	tracer trace.Tracer
}

// NewService creates a booking service. email may be nil, in which case no
// confirmation is sent.
func NewService(repo Repository, leadRepo leads.Repository, email notify.EmailSender, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if leadRepo == nil {
		panic("bookings: leads repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		leads:  leadRepo,
		email:  email,
		logger: logger,
		tracer: otel.Tracer("propertyagent.internal.bookings"),
	}
}

// Book confirms a viewing for the conversation's lead. Calling it again with
// the same conversation and project returns the original booking unchanged.
func (s *Service) Book(ctx context.Context, conversationID string, projectID int64, projectName string) (Booking, error) {
	ctx, span := s.tracer.Start(ctx, "bookings.book",
		trace.WithAttributes(attribute.Int64("booking.project_id", projectID)))
	defer span.End()

	lead, err := s.leads.GetByConversation(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		return Booking{}, fmt.Errorf("bookings: lead lookup: %w", err)
	}

	booking, created, err := s.repo.CreateIdempotent(ctx, Booking{
		ConversationID: conversationID,
		ProjectID:      projectID,
		ProjectName:    projectName,
		LeadID:         lead.ID,
	})
	if err != nil {
		span.RecordError(err)
		return Booking{}, err
	}
	span.SetAttributes(attribute.Bool("booking.created", created))

	if !created {
		s.logger.Info("booking already exists",
			"conversation_id", conversationID, "project_id", projectID)
		return booking, nil
	}

	s.logger.Info("booking created",
		"conversation_id", conversationID,
		"project_id", projectID,
		"booking_id", booking.ID)

	if s.email != nil {
		// Confirmation is best-effort and must not block the turn.
		go s.sendConfirmation(lead, booking)
	}
	return booking, nil
}

func (s *Service) sendConfirmation(lead leads.Lead, booking Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
	defer cancel()

	body := notify.BookingConfirmationBody(lead.FirstName, booking.ProjectName)
	name := lead.FirstName + " " + lead.LastName
	if err := s.email.Send(ctx, lead.Email, name, notify.BookingConfirmationSubject, body); err != nil {
		s.logger.Error("booking confirmation email failed",
			"booking_id", booking.ID, "error", err)
	}
}
