package ports

import (
	"context"
	"io"
)

// AIResponder is the language model collaborator. Every call may be slow or fail.
type AIResponder interface {
	GenerateReply(ctx context.Context, prompt string) (string, error)
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	// Synthesize renders text to speech, stores it and returns its URL.
	Synthesize(ctx context.Context, text string) (string, error)
}

// BlobStore persists opaque files and hands back a retrievable URL.
type BlobStore interface {
	Put(ctx context.Context, data io.Reader, mimeType, filename string) (string, error)
	// Open reads back a file previously returned by Put.
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Notification templates understood by the email worker.
const (
	TemplateTechnicianAssignment = "technician-assignment"
	TemplateTicketStatus         = "ticket-status"
)

// NotificationJob is a fire-and-forget email request.
type NotificationJob struct {
	To       string            `json:"to"`
	ToName   string            `json:"toName"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Context  map[string]string `json:"context"`
	TicketID int64             `json:"ticketId"`
}

// Notifier accepts notification jobs. Implementations queue or send them;
// callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, job NotificationJob) error
}
