// Package email renders notification jobs and hands them to a sender.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// DefaultFrom is the sender address when none is configured.
const DefaultFrom = `"Helpdesk System" <no-reply@helpdesk.local>`

// ErrNoRecipient is returned for jobs without a destination address.
var ErrNoRecipient = errors.New("notification job has no recipient")

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered emails.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// MockSMTPSender logs emails instead of sending them.
type MockSMTPSender struct {
	logger *slog.Logger
}

func NewMockSMTPSender(logger *slog.Logger) *MockSMTPSender {
	return &MockSMTPSender{logger: logger.With("component", "email_sender")}
}

func (s *MockSMTPSender) Send(ctx context.Context, msg *Message) error {
	s.logger.InfoContext(ctx, "mock email sent",
		"to_name", msg.ToName,
		"to_email", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Text),
	)
	return nil
}

// Mailer renders jobs and sends them. The worker uses it for queued jobs.
type Mailer struct {
	from   string
	sender Sender
	logger *slog.Logger
}

func NewMailer(from string, sender Sender, logger *slog.Logger) *Mailer {
	if from == "" {
		from = DefaultFrom
	}
	return &Mailer{
		from:   from,
		sender: sender,
		logger: logger.With("component", "mailer"),
	}
}

// Deliver renders and sends one job.
func (m *Mailer) Deliver(ctx context.Context, job ports.NotificationJob) error {
	if job.To == "" {
		return ErrNoRecipient
	}
	msg, err := Render(m.from, job)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending %s email for ticket %d: %w", job.Template, job.TicketID, err)
	}
	return nil
}

// DirectNotifier delivers in process, for deployments without a queue.
type DirectNotifier struct {
	mailer *Mailer
}

var _ ports.Notifier = (*DirectNotifier)(nil)

func NewDirectNotifier(mailer *Mailer) ports.Notifier {
	return &DirectNotifier{mailer: mailer}
}

func (n *DirectNotifier) Notify(ctx context.Context, job ports.NotificationJob) error {
	return n.mailer.Deliver(ctx, job)
}
