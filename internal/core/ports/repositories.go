package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

// UserRepository is the read side of the external user directory, plus an
// upsert used by local tooling to seed it.
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// ListByRole returns users ordered by creation time, oldest first.
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}

// ListTicketsRepoParams narrows a ticket listing. Nil filters are ignored.
type ListTicketsRepoParams struct {
	RequesterID *uuid.UUID
	AssignedTo  *uuid.UUID
	Status      *domain.TicketStatus
	Limit       int32
	Offset      int32
}

// TicketRepository persists tickets. Listings are newest first.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	List(ctx context.Context, params ListTicketsRepoParams) ([]*domain.Ticket, error)
	CountByStatus(ctx context.Context, requesterID uuid.UUID) (domain.TicketCounts, error)
	// ActiveAssignmentCounts counts open and in-progress tickets per
	// technician. Technicians without tickets are absent from the map.
	ActiveAssignmentCounts(ctx context.Context, technicianIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	// LockAssignments serializes technician selection for the rest of the
	// surrounding transaction.
	LockAssignments(ctx context.Context) error
}

// MessageRepository persists chat messages. Messages are never updated.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	// ListByTicket returns a ticket's messages in creation order.
	ListByTicket(ctx context.Context, ticketID int64) ([]*domain.ChatMessage, error)
}

// AnalyticsRepository runs the aggregate queries behind admin reporting.
type AnalyticsRepository interface {
	Totals(ctx context.Context) (domain.DashboardTotals, error)
	// Overview aggregates tickets created in [since, until). Volume has one
	// point per UTC day from since through until, oldest first.
	Overview(ctx context.Context, since, until time.Time) (*domain.AnalyticsOverview, error)
}
