package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// LoadBalancer picks the technician with the fewest open or in-progress
// tickets. Ties go to the longest-registered technician.
type LoadBalancer struct {
	userRepo   ports.UserRepository
	ticketRepo ports.TicketRepository
	logger     *slog.Logger
}

var _ ports.LoadBalancer = (*LoadBalancer)(nil)

// NewLoadBalancer creates a new technician load balancer
func NewLoadBalancer(
	userRepo ports.UserRepository,
	ticketRepo ports.TicketRepository,
	logger *slog.Logger,
) ports.LoadBalancer {
	return &LoadBalancer{
		userRepo:   userRepo,
		ticketRepo: ticketRepo,
		logger:     logger.With("component", "load_balancer"),
	}
}

// PickTechnician reads the current load snapshot and returns the least
// loaded technician. It never mutates anything.
func (lb *LoadBalancer) PickTechnician(ctx context.Context) (*domain.User, error) {
	// 1. Enumerate the technician pool
	technicians, err := lb.userRepo.ListByRole(ctx, domain.RoleTechnician)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	if len(technicians) == 0 {
		return nil, apperrors.ErrNoTechnicianAvailable
	}

	ids := make([]uuid.UUID, len(technicians))
	byID := make(map[uuid.UUID]*domain.User, len(technicians))
	for i, tech := range technicians {
		ids[i] = tech.ID
		byID[tech.ID] = tech
	}

	// 2. Count active assignments per technician
	counts, err := lb.ticketRepo.ActiveAssignmentCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}

	// 3. Select the minimum, keeping directory order for ties
	loads := make([]domain.TechnicianLoad, len(ids))
	for i, id := range ids {
		loads[i] = domain.TechnicianLoad{TechnicianID: id, ActiveTickets: counts[id]}
	}
	best, ok := domain.LeastLoaded(loads)
	if !ok {
		return nil, apperrors.ErrNoTechnicianAvailable
	}

	lb.logger.Debug("technician selected",
		"technician_id", best.TechnicianID,
		"active_tickets", best.ActiveTickets,
		"pool_size", len(technicians),
	)
	return byID[best.TechnicianID], nil
}
