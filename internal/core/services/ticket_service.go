package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/metrics"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	notifyTimeout = 10 * time.Second
)

// TicketService implements business logic for ticket management
type TicketService struct {
	ticketRepo ports.TicketRepository
	userRepo   ports.UserRepository
	balancer   ports.LoadBalancer
	txManager  ports.TransactionManager
	notifier   ports.Notifier
	clock      clock.Clock
	logger     *slog.Logger
	wg         sync.WaitGroup
}

var _ ports.TicketService = (*TicketService)(nil)

// NewTicketService creates a new ticket service
func NewTicketService(
	ticketRepo ports.TicketRepository,
	userRepo ports.UserRepository,
	balancer ports.LoadBalancer,
	txManager ports.TransactionManager,
	notifier ports.Notifier,
	clk clock.Clock,
	logger *slog.Logger,
) ports.TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		userRepo:   userRepo,
		balancer:   balancer,
		txManager:  txManager,
		notifier:   notifier,
		clock:      clk,
		logger:     logger.With("component", "ticket_service"),
	}
}

// CreateTicket handles the use case for submitting a new ticket. Technical
// tickets are only stored together with their technician.
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	// 1. Authentication Check
	if !params.Requester.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	// 2. Create domain entity with validation
	ticket, err := domain.NewTicket(domain.TicketParams{
		Description:        params.Description,
		Priority:           params.Priority,
		Category:           params.Category,
		RequiresTechnician: params.RequiresTechnician,
		RequesterID:        params.Requester.UserID,
		CreatedAt:          s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	// 3. Pick a technician and persist in one transaction
	var technician *domain.User
	var created *domain.Ticket
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if ticket.NeedsTechnician() {
			if err := s.ticketRepo.LockAssignments(ctx); err != nil {
				return err
			}
			tech, err := s.balancer.PickTechnician(ctx)
			if err != nil {
				return err
			}
			id := tech.ID
			ticket.AssignedTo = &id
			technician = tech
		}

		var err error
		created, err = s.ticketRepo.Create(ctx, ticket)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNoTechnicianAvailable) {
			metrics.AssignmentFailures.Inc()
			s.logger.Warn("technical ticket rejected, no technician available",
				"requester_id", params.Requester.UserID,
			)
			return nil, apperrors.NewAssignmentError(err)
		}
		return nil, err
	}
	metrics.TicketsCreated.WithLabelValues(string(created.Category)).Inc()

	// 4. Expand and notify the assignee (async)
	if technician != nil {
		created.AssignedTechnician = technician.Info()
		s.notifyAssignment(created, technician)
	}

	s.logger.Info("ticket created",
		"ticket_id", created.ID,
		"category", created.Category,
		"priority", created.Priority,
		"assigned", created.IsAssigned(),
	)
	return created, nil
}

// GetTicket retrieves a ticket the viewer may read. Tickets the viewer
// cannot see are reported as missing.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64, viewer *domain.Identity) (*domain.Ticket, error) {
	// 1. Authentication Check
	if !viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	// 2. Fetch the ticket
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	// 3. Check ownership or elevated role
	if !ticket.VisibleTo(viewer) {
		return nil, apperrors.ErrTicketNotFound
	}

	s.expand(ctx, ticket)
	return ticket, nil
}

// UpdateStatus moves a ticket forward along its lifecycle. Any logged in
// caller who can read the ticket may do this.
func (s *TicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	// 1. Authentication Check
	if !params.Actor.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	// 2. Fetch the ticket; tickets the caller cannot read do not exist for them
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if !ticket.VisibleTo(params.Actor) {
		return nil, apperrors.ErrTicketNotFound
	}

	// 3. Apply status change (domain validates the transition)
	previous := ticket.Status
	if err := ticket.UpdateStatus(params.Status, s.clock.Now()); err != nil {
		return nil, err
	}
	if ticket.Status == previous {
		s.expand(ctx, ticket)
		return ticket, nil
	}

	// 4. Persist changes
	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.expand(ctx, updated)

	// 5. Tell the requester when someone else moved their ticket (async)
	if !updated.IsOwnedBy(params.Actor.UserID) {
		s.notifyStatusChange(updated)
	}

	return updated, nil
}

// ReopenTicket sends a resolved or closed ticket back to open.
func (s *TicketService) ReopenTicket(ctx context.Context, ticketID int64, actor *domain.Identity) (*domain.Ticket, error) {
	if !actor.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.VisibleTo(actor) {
		return nil, apperrors.ErrTicketNotFound
	}

	if err := ticket.Reopen(s.clock.Now()); err != nil {
		return nil, err
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.expand(ctx, updated)

	if !updated.IsOwnedBy(actor.UserID) {
		s.notifyStatusChange(updated)
	}
	return updated, nil
}

// AssignTicket hands a ticket to a specific technician. Admin only.
func (s *TicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	// 1. Authorization Check
	if !params.Actor.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	if params.Actor.Role != domain.RoleAdmin {
		return nil, apperrors.ErrForbidden
	}

	// 2. Resolve the technician
	technician, err := s.userRepo.GetByID(ctx, params.TechnicianID)
	if err != nil {
		return nil, err
	}
	if technician.Role != domain.RoleTechnician {
		return nil, apperrors.ErrNotATechnician
	}

	// 3. Fetch and update domain entity
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if err := ticket.Assign(technician.ID, s.clock.Now()); err != nil {
		return nil, err
	}

	// 4. Persist changes
	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}
	updated.AssignedTechnician = technician.Info()

	// 5. Notify the new assignee (async)
	s.notifyAssignment(updated, technician)

	return updated, nil
}

// ListUserTickets lists the viewer's own tickets.
func (s *TicketService) ListUserTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	if !params.Viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	requesterID := params.Viewer.UserID
	return s.list(ctx, params, ports.ListTicketsRepoParams{RequesterID: &requesterID})
}

// ListAllTickets lists every ticket. Staff only.
func (s *TicketService) ListAllTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	if !params.Viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	if !params.Viewer.Role.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	return s.list(ctx, params, ports.ListTicketsRepoParams{})
}

// ListTechnicianTickets lists the tickets assigned to the calling technician.
func (s *TicketService) ListTechnicianTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	if !params.Viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	if params.Viewer.Role != domain.RoleTechnician {
		return nil, apperrors.ErrForbidden
	}
	assignee := params.Viewer.UserID
	return s.list(ctx, params, ports.ListTicketsRepoParams{AssignedTo: &assignee})
}

// GetTicketCounts tallies the viewer's own tickets by status.
func (s *TicketService) GetTicketCounts(ctx context.Context, viewer *domain.Identity) (*domain.TicketCounts, error) {
	if !viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	counts, err := s.ticketRepo.CountByStatus(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

// GetRecentTickets returns the viewer's newest tickets.
func (s *TicketService) GetRecentTickets(ctx context.Context, viewer *domain.Identity) ([]*domain.Ticket, error) {
	if !viewer.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	requesterID := viewer.UserID
	tickets, err := s.ticketRepo.List(ctx, ports.ListTicketsRepoParams{
		RequesterID: &requesterID,
		Limit:       domain.RecentTicketsLimit,
	})
	if err != nil {
		return nil, err
	}
	s.expandAll(ctx, tickets)
	return tickets, nil
}

func (s *TicketService) list(ctx context.Context, params ports.ListTicketsParams, repoParams ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, apperrors.ErrInvalidStatus
	}
	limit, offset := normalizePage(params.Limit, params.Offset)
	repoParams.Status = params.Status
	repoParams.Limit = int32(limit)
	repoParams.Offset = int32(offset)

	tickets, err := s.ticketRepo.List(ctx, repoParams)
	if err != nil {
		return nil, err
	}
	s.expandAll(ctx, tickets)
	return tickets, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// expand resolves the assigned technician for display. A directory miss
// leaves the reference unexpanded.
func (s *TicketService) expand(ctx context.Context, ticket *domain.Ticket) {
	s.expandAll(ctx, []*domain.Ticket{ticket})
}

func (s *TicketService) expandAll(ctx context.Context, tickets []*domain.Ticket) {
	cache := make(map[uuid.UUID]*domain.UserInfo)
	for _, ticket := range tickets {
		if ticket.AssignedTo == nil || ticket.AssignedTechnician != nil {
			continue
		}
		id := *ticket.AssignedTo
		info, seen := cache[id]
		if !seen {
			user, err := s.userRepo.GetByID(ctx, id)
			if err != nil {
				s.logger.Warn("could not resolve assigned technician",
					"ticket_id", ticket.ID,
					"technician_id", id,
					"error", err,
				)
			} else {
				info = user.Info()
			}
			cache[id] = info
		}
		ticket.AssignedTechnician = info
	}
}

// notifyAssignment queues the technician-assignment email
func (s *TicketService) notifyAssignment(ticket *domain.Ticket, technician *domain.User) {
	job := ports.NotificationJob{
		To:       technician.Email,
		ToName:   technician.FullName,
		Subject:  fmt.Sprintf("New ticket assigned: #%d", ticket.ID),
		Template: ports.TemplateTechnicianAssignment,
		Context: map[string]string{
			"technicianName": technician.FullName,
			"ticketId":       strconv.FormatInt(ticket.ID, 10),
			"description":    ticket.Description,
			"priority":       string(ticket.Priority),
			"category":       string(ticket.Category),
		},
		TicketID: ticket.ID,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Use background context since the HTTP request may be done
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.notify(ctx, job)
	}()
}

// notifyStatusChange tells the requester their ticket moved
func (s *TicketService) notifyStatusChange(ticket *domain.Ticket) {
	ticketID := ticket.ID
	requesterID := ticket.RequesterID
	status := ticket.Status

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		requester, err := s.userRepo.GetByID(ctx, requesterID)
		if err != nil {
			metrics.NotificationFailures.Inc()
			s.logger.Error("failed to resolve requester for status notification",
				"ticket_id", ticketID,
				"error", err,
			)
			return
		}

		s.notify(ctx, ports.NotificationJob{
			To:       requester.Email,
			ToName:   requester.FullName,
			Subject:  fmt.Sprintf("Your ticket status has been updated: #%d", ticketID),
			Template: ports.TemplateTicketStatus,
			Context: map[string]string{
				"name":     requester.FullName,
				"ticketId": strconv.FormatInt(ticketID, 10),
				"status":   string(status),
			},
			TicketID: ticketID,
		})
	}()
}

func (s *TicketService) notify(ctx context.Context, job ports.NotificationJob) {
	if err := s.notifier.Notify(ctx, job); err != nil {
		metrics.NotificationFailures.Inc()
		s.logger.Error("failed to queue notification",
			"ticket_id", job.TicketID,
			"template", job.Template,
			"error", err,
		)
	}
}

func (s *TicketService) Shutdown() {
	s.wg.Wait()
}
