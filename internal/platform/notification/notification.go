// Package notification sends clinical email and SMS notifications from
// templates, keeps a delivery log with retry, and exposes it over HTTP.
package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// NotificationType represents the channel used to deliver a notification.
type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypeSMS   NotificationType = "sms"
)

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification represents a single outbound notification.
type Notification struct {
	ID           string            `json:"id"`
	Type         NotificationType  `json:"type"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Priority     string            `json:"priority"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogEmailSender writes outgoing email to the log instead of a provider.
type LogEmailSender struct {
	From   string
	Logger zerolog.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("channel", "email").
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Int("body_chars", len(body)).
		Msg("notification delivered")
	return nil
}

// LogSMSSender writes outgoing SMS to the log instead of a provider.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Int("body_chars", len(body)).
		Msg("notification delivered")
	return nil
}
