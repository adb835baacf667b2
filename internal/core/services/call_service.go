package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
)

// CallService mints call descriptors and publishes them to the ticket's
// subscribers. Nothing about a call is stored.
type CallService struct {
	ticketRepo  ports.TicketRepository
	broadcaster ports.EventBroadcaster
	clock       clock.Clock
	logger      *slog.Logger
}

var _ ports.CallService = (*CallService)(nil)

// NewCallService creates a new call service
func NewCallService(
	ticketRepo ports.TicketRepository,
	broadcaster ports.EventBroadcaster,
	clk clock.Clock,
	logger *slog.Logger,
) ports.CallService {
	return &CallService{
		ticketRepo:  ticketRepo,
		broadcaster: broadcaster,
		clock:       clk,
		logger:      logger.With("component", "call_service"),
	}
}

// Initiate publishes a call between the requester and the admin
// placeholder. It performs no access checks.
func (s *CallService) Initiate(ctx context.Context, ticketID int64, requesterID uuid.UUID, callType domain.CallType) (*domain.CallSession, error) {
	if callType == "" {
		callType = domain.CallTypeAudio
	}
	if !callType.IsValid() {
		return nil, apperrors.ErrInvalidCallType
	}

	call := domain.NewCallSession(ticketID, requesterID, callType, s.clock.Now())
	if err := s.broadcaster.Broadcast(domain.NewCallEvent(call)); err != nil {
		return nil, fmt.Errorf("publish call %s: %w", call.CallID, err)
	}

	s.logger.Info("call initiated",
		"ticket_id", ticketID,
		"call_id", call.CallID,
		"type", call.Type,
	)
	return call, nil
}

// InitiateCall handles an explicit call request. Staff may call on any
// ticket they can see; requesters only on their high priority tickets.
func (s *CallService) InitiateCall(ctx context.Context, params ports.InitiateCallParams) (*domain.CallSession, error) {
	// 1. Authentication Check
	if !params.Actor.Valid() {
		return nil, apperrors.ErrUnauthorized
	}

	// 2. Fetch the ticket and check visibility
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if !ticket.VisibleTo(params.Actor) {
		return nil, apperrors.ErrTicketNotFound
	}

	// 3. Requesters may only escalate urgent tickets
	if !params.Actor.Role.IsStaff() && ticket.Priority != domain.PriorityHigh {
		return nil, apperrors.ErrCallNotPermitted
	}

	return s.Initiate(ctx, ticket.ID, ticket.RequesterID, params.Type)
}
