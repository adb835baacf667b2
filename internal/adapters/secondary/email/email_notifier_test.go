package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []*Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg *Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assignmentJob() ports.NotificationJob {
	return ports.NotificationJob{
		To:       "ada@helpdesk.test",
		ToName:   "Ada",
		Template: ports.TemplateTechnicianAssignment,
		Context: map[string]string{
			"technicianName": "Ada",
			"ticketId":       "42",
			"description":    "Laptop <b>will not</b> boot",
			"priority":       "high",
			"category":       "technical",
		},
		TicketID: 42,
	}
}

func TestRender(t *testing.T) {
	t.Run("technician assignment", func(t *testing.T) {
		msg, err := Render(DefaultFrom, assignmentJob())
		require.NoError(t, err)

		assert.Equal(t, "New Technical Ticket Assigned", msg.Subject)
		assert.Contains(t, msg.Text, "Hello Ada,")
		assert.Contains(t, msg.Text, "(#42)")
		assert.Contains(t, msg.Text, "Priority: high")
		assert.Contains(t, msg.HTML, "Laptop &lt;b&gt;will not&lt;/b&gt; boot")
	})

	t.Run("job subject overrides default", func(t *testing.T) {
		job := ports.NotificationJob{
			To:       "sam@helpdesk.test",
			Subject:  "Your ticket status has been updated: #7",
			Template: ports.TemplateTicketStatus,
			Context:  map[string]string{"name": "Sam", "ticketId": "7", "status": "resolved"},
		}
		msg, err := Render(DefaultFrom, job)
		require.NoError(t, err)
		assert.Equal(t, job.Subject, msg.Subject)
		assert.Contains(t, msg.Text, "Your ticket #7 is now resolved.")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := Render(DefaultFrom, ports.NotificationJob{To: "x@y.z", Template: "otp"})
		assert.ErrorIs(t, err, ErrUnknownTemplate)
	})
}

func TestMailer_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("sends rendered mail", func(t *testing.T) {
		sender := &recordingSender{}
		mailer := NewMailer("", sender, quietLogger())

		require.NoError(t, mailer.Deliver(ctx, assignmentJob()))
		require.Len(t, sender.sent, 1)
		assert.Equal(t, DefaultFrom, sender.sent[0].From)
		assert.Equal(t, "ada@helpdesk.test", sender.sent[0].To)
	})

	t.Run("missing recipient", func(t *testing.T) {
		mailer := NewMailer("", &recordingSender{}, quietLogger())
		job := assignmentJob()
		job.To = ""
		assert.ErrorIs(t, mailer.Deliver(ctx, job), ErrNoRecipient)
	})

	t.Run("sender failure is wrapped", func(t *testing.T) {
		boom := errors.New("smtp down")
		notifier := NewDirectNotifier(NewMailer("", &recordingSender{err: boom}, quietLogger()))
		assert.ErrorIs(t, notifier.Notify(ctx, assignmentJob()), boom)
	})

	t.Run("mock smtp sender logs and succeeds", func(t *testing.T) {
		mailer := NewMailer("", NewMockSMTPSender(quietLogger()), quietLogger())
		assert.NoError(t, mailer.Deliver(ctx, assignmentJob()))
	})
}
