package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

const (
	MinDescriptionLength = 20
	MaxDescriptionLength = 5000

	// RecentTicketsLimit is how many tickets the recent listing returns.
	RecentTicketsLimit = 5
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in-progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// statusOrder ranks statuses along the forward lifecycle.
var statusOrder = map[TicketStatus]int{
	StatusOpen:       0,
	StatusInProgress: 1,
	StatusResolved:   2,
	StatusClosed:     3,
}

// IsValid reports whether s is a known status.
func (s TicketStatus) IsValid() bool {
	_, ok := statusOrder[s]
	return ok
}

// IsActive reports whether the ticket still counts toward a technician's load.
func (s TicketStatus) IsActive() bool {
	return s == StatusOpen || s == StatusInProgress
}

// IsSettled reports whether the ticket has been resolved or closed.
func (s TicketStatus) IsSettled() bool {
	return s == StatusResolved || s == StatusClosed
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TicketCategory separates hands-on technical work from general questions.
type TicketCategory string

const (
	CategoryTechnical TicketCategory = "technical"
	CategoryGeneral   TicketCategory = "general"
)

func (c TicketCategory) IsValid() bool {
	return c == CategoryTechnical || c == CategoryGeneral
}

// Ticket is the core domain entity.
type Ticket struct {
	ID                 int64
	RequesterID        uuid.UUID
	Description        string
	Status             TicketStatus
	Priority           TicketPriority
	Category           TicketCategory
	RequiresTechnician bool
	AssignedTo         *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          *time.Time

	// AssignedTechnician is resolved by the service layer for display.
	AssignedTechnician *UserInfo
}

// TicketParams holds the caller supplied fields for a new ticket.
type TicketParams struct {
	Description        string
	Priority           TicketPriority
	Category           TicketCategory
	RequiresTechnician bool
	RequesterID        uuid.UUID
	CreatedAt          time.Time
}

// NewTicket validates params and builds an open ticket. Empty priority
// defaults to medium and empty category defaults to technical.
func NewTicket(params TicketParams) (*Ticket, error) {
	if params.RequesterID == uuid.Nil {
		return nil, apperrors.ErrRequesterRequired
	}

	description := strings.TrimSpace(params.Description)
	length := utf8.RuneCountInString(description)
	if length < MinDescriptionLength {
		return nil, apperrors.ErrDescriptionTooShort
	}
	if length > MaxDescriptionLength {
		return nil, apperrors.ErrDescriptionTooLong
	}

	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.IsValid() {
		return nil, apperrors.ErrInvalidPriority
	}

	category := params.Category
	if category == "" {
		category = CategoryTechnical
	}
	if !category.IsValid() {
		return nil, apperrors.ErrInvalidCategory
	}

	requiresTechnician := params.RequiresTechnician
	switch category {
	case CategoryTechnical:
		requiresTechnician = true
	case CategoryGeneral:
		if requiresTechnician {
			return nil, apperrors.ErrTechnicianMismatch
		}
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &Ticket{
		RequesterID:        params.RequesterID,
		Description:        description,
		Status:             StatusOpen,
		Priority:           priority,
		Category:           category,
		RequiresTechnician: requiresTechnician,
		CreatedAt:          createdAt,
	}, nil
}

// NeedsTechnician reports whether creation must go through the load balancer.
func (t *Ticket) NeedsTechnician() bool {
	return t.Category == CategoryTechnical || t.RequiresTechnician
}

// IsOwnedBy checks whether the user submitted the ticket.
func (t *Ticket) IsOwnedBy(userID uuid.UUID) bool {
	return t.RequesterID == userID
}

// IsAssignedTo checks whether the technician currently owns the ticket.
func (t *Ticket) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// IsAssigned reports whether any technician is attached.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedTo != nil
}

// VisibleTo decides whether the identity may read the ticket and its chat.
func (t *Ticket) VisibleTo(id *Identity) bool {
	if id == nil {
		return false
	}
	switch {
	case id.Role == RoleAdmin:
		return true
	case t.IsOwnedBy(id.UserID):
		return true
	case id.Role == RoleTechnician && t.IsAssignedTo(id.UserID):
		return true
	}
	return false
}

// UpdateStatus moves the ticket forward along open -> in-progress ->
// resolved -> closed. Setting the current status again is a no-op; moving
// backwards requires Reopen.
func (t *Ticket) UpdateStatus(newStatus TicketStatus, now time.Time) error {
	if !newStatus.IsValid() {
		return apperrors.ErrInvalidStatus
	}
	if newStatus == t.Status {
		return nil
	}
	if statusOrder[newStatus] < statusOrder[t.Status] {
		return apperrors.ErrInvalidStatusTransition
	}

	t.Status = newStatus
	t.touch(now)
	return nil
}

// Reopen sends a resolved or closed ticket back to open.
func (t *Ticket) Reopen(now time.Time) error {
	if !t.Status.IsSettled() {
		return apperrors.ErrCannotReopen
	}
	t.Status = StatusOpen
	t.touch(now)
	return nil
}

// MarkInProgress flips an open ticket to in-progress once someone answers.
// It reports whether the status changed.
func (t *Ticket) MarkInProgress(now time.Time) bool {
	if t.Status != StatusOpen {
		return false
	}
	t.Status = StatusInProgress
	t.touch(now)
	return true
}

// Assign attaches a technician. An open ticket moves to in-progress.
func (t *Ticket) Assign(technicianID uuid.UUID, now time.Time) error {
	if t.Status == StatusClosed {
		return apperrors.ErrCannotAssignClosed
	}
	id := technicianID
	t.AssignedTo = &id
	if t.Status == StatusOpen {
		t.Status = StatusInProgress
	}
	t.touch(now)
	return nil
}

func (t *Ticket) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	t.UpdatedAt = &now
}
