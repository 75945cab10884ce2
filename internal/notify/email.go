// Package notify sends outbound email. Delivery failures are logged, never
// surfaced to the conversation; a missed confirmation email must not fail a
// booking.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/silverland/property-agent/pkg/logging"
)

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// NewSendGridSender creates a sender. apiKey and fromEmail must be set.
func NewSendGridSender(apiKey, fromEmail, fromName string, logger *logging.Logger) *SendGridSender {
	if apiKey == "" {
		panic("notify: sendgrid api key required")
	}
	if fromEmail == "" {
		panic("notify: from email required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	msg := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}

	s.logger.Info("email sent", "to", toEmail, "subject", subject)
	return nil
}

// NoopSender discards email. Used when no SendGrid key is configured.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	return nil
}
