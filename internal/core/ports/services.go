package ports

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

// CreateTicketParams defines the required input for creating a new ticket.
type CreateTicketParams struct {
	Description        string
	Priority           domain.TicketPriority
	Category           domain.TicketCategory
	RequiresTechnician bool
	Requester          *domain.Identity
}

// UpdateStatusParams defines the input for changing a ticket's status.
type UpdateStatusParams struct {
	TicketID int64
	Status   domain.TicketStatus
	Actor    *domain.Identity
}

// AssignTicketParams defines the input for assigning a ticket.
type AssignTicketParams struct {
	TicketID     int64
	TechnicianID uuid.UUID
	Actor        *domain.Identity
}

// ListTicketsParams defines the input for listing tickets.
type ListTicketsParams struct {
	Viewer *domain.Identity
	Limit  int
	Offset int
	Status *domain.TicketStatus
}

// SendMessageParams defines the input for posting to a ticket's chat. Audio
// is set for voice messages and is stored before the message is persisted.
type SendMessageParams struct {
	TicketID      int64
	Message       string
	Audio         io.Reader
	AudioFilename string
	AudioMimeType string
	Sender        *domain.Identity
}

// InitiateCallParams defines the input for an explicit call request.
type InitiateCallParams struct {
	TicketID int64
	Type     domain.CallType
	Actor    *domain.Identity
}

// UpsertUserParams defines the input for writing a directory entry.
type UpsertUserParams struct {
	UserID   uuid.UUID
	FullName string
	Email    string
	Role     domain.Role
	Actor    *domain.Identity
}

// DirectoryService keeps the local copy of the user directory that ticket
// assignment and notifications read from.
type DirectoryService interface {
	// SyncSelf stores the caller's profile under the role from their token.
	SyncSelf(ctx context.Context, fullName, email string, actor *domain.Identity) (*domain.User, error)
	GetSelf(ctx context.Context, actor *domain.Identity) (*domain.User, error)
	// UpsertUser and ListUsers are admin only.
	UpsertUser(ctx context.Context, params UpsertUserParams) (*domain.User, error)
	ListUsers(ctx context.Context, role *domain.Role, actor *domain.Identity) ([]*domain.User, error)
}

// ReportService serves the admin dashboard and period reports. Both are
// admin only.
type ReportService interface {
	Dashboard(ctx context.Context, actor *domain.Identity) (*domain.DashboardTotals, error)
	// Report covers the period ending now; an empty period means a week.
	Report(ctx context.Context, period domain.ReportPeriod, actor *domain.Identity) (*domain.AnalyticsOverview, error)
}

// TicketService defines the core business operations for managing tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64, viewer *domain.Identity) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*domain.Ticket, error)
	ReopenTicket(ctx context.Context, ticketID int64, actor *domain.Identity) (*domain.Ticket, error)
	AssignTicket(ctx context.Context, params AssignTicketParams) (*domain.Ticket, error)
	ListUserTickets(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)
	ListAllTickets(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)
	ListTechnicianTickets(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)
	GetTicketCounts(ctx context.Context, viewer *domain.Identity) (*domain.TicketCounts, error)
	GetRecentTickets(ctx context.Context, viewer *domain.Identity) ([]*domain.Ticket, error)
	Shutdown()
}

// LoadBalancer picks the technician for a new technical ticket.
type LoadBalancer interface {
	PickTechnician(ctx context.Context) (*domain.User, error)
}

// ChatService owns the message pipeline: persist, fan out, then route.
type ChatService interface {
	SendMessage(ctx context.Context, params SendMessageParams) (*domain.ChatMessage, error)
	GetChatMessages(ctx context.Context, ticketID int64, viewer *domain.Identity) ([]*domain.ChatMessage, error)
	Shutdown()
}

// CallInitiator mints and publishes a call descriptor without access checks.
// The routing engine uses it for escalations.
type CallInitiator interface {
	Initiate(ctx context.Context, ticketID int64, requesterID uuid.UUID, callType domain.CallType) (*domain.CallSession, error)
}

// CallService exposes explicit call requests to clients.
type CallService interface {
	CallInitiator
	InitiateCall(ctx context.Context, params InitiateCallParams) (*domain.CallSession, error)
}

// SpeechService turns text into a stored audio asset.
type SpeechService interface {
	ConvertTextToSpeech(ctx context.Context, text string, actor *domain.Identity) (string, error)
}

// EventBroadcaster publishes real-time events to ticket subscribers.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
