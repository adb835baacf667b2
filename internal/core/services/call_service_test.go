package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/mocks"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/core/services"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCallService_Initiate(t *testing.T) {
	ctx := context.Background()
	requesterID := uuid.New()

	t.Run("publishes a call descriptor", func(t *testing.T) {
		ticketRepo := mocks.NewMockTicketRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(ticketRepo, broadcaster, clock.Fake(testEpoch), discardLogger())

		broadcaster.On("Broadcast", mock.MatchedBy(func(ev domain.Event) bool {
			snap, ok := ev.Payload.(domain.CallSnapshot)
			return ok && ev.Type == domain.EventCallInitiated && ev.TicketID == 12 && snap.Type == "audio"
		})).Return(nil)

		call, err := svc.Initiate(ctx, 12, requesterID, "")

		require.NoError(t, err)
		assert.Equal(t, domain.CallTypeAudio, call.Type)
		assert.Equal(t, []string{requesterID.String(), domain.AdminParticipant}, call.Participants)
		assert.True(t, strings.HasPrefix(call.CallID, "call-"))
		assert.Equal(t, testEpoch, call.Timestamp)
		broadcaster.AssertExpectations(t)
	})

	t.Run("call ids are unique", func(t *testing.T) {
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(mocks.NewMockTicketRepository(), broadcaster, clock.Fake(testEpoch), discardLogger())
		broadcaster.On("Broadcast", mock.Anything).Return(nil)

		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			call, err := svc.Initiate(ctx, 1, requesterID, domain.CallTypeVideo)
			require.NoError(t, err)
			assert.False(t, seen[call.CallID], "duplicate call id %s", call.CallID)
			seen[call.CallID] = true
		}
	})

	t.Run("rejects unknown call types", func(t *testing.T) {
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(mocks.NewMockTicketRepository(), broadcaster, clock.Fake(testEpoch), discardLogger())

		_, err := svc.Initiate(ctx, 1, requesterID, "hologram")

		assert.ErrorIs(t, err, apperrors.ErrInvalidCallType)
		broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(mocks.NewMockTicketRepository(), broadcaster, clock.Fake(testEpoch), discardLogger())
		boom := errors.New("bus closed")
		broadcaster.On("Broadcast", mock.Anything).Return(boom)

		_, err := svc.Initiate(ctx, 1, requesterID, domain.CallTypeAudio)
		assert.ErrorIs(t, err, boom)
	})
}

func TestCallService_InitiateCall(t *testing.T) {
	ctx := context.Background()
	owner := identity(domain.RoleUser)

	ticketWith := func(priority domain.TicketPriority) *domain.Ticket {
		return &domain.Ticket{ID: 3, RequesterID: owner.UserID, Priority: priority, Status: domain.StatusOpen}
	}

	t.Run("owner may call on a high priority ticket", func(t *testing.T) {
		ticketRepo := mocks.NewMockTicketRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(ticketRepo, broadcaster, clock.Fake(testEpoch), discardLogger())

		ticketRepo.On("GetByID", ctx, int64(3)).Return(ticketWith(domain.PriorityHigh), nil)
		broadcaster.On("Broadcast", mock.Anything).Return(nil)

		call, err := svc.InitiateCall(ctx, ports.InitiateCallParams{TicketID: 3, Type: domain.CallTypeVideo, Actor: owner})

		require.NoError(t, err)
		assert.Equal(t, domain.CallTypeVideo, call.Type)
		assert.Equal(t, owner.UserID.String(), call.Participants[0])
	})

	t.Run("owner may not call on a low priority ticket", func(t *testing.T) {
		ticketRepo := mocks.NewMockTicketRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(ticketRepo, broadcaster, clock.Fake(testEpoch), discardLogger())

		ticketRepo.On("GetByID", ctx, int64(3)).Return(ticketWith(domain.PriorityLow), nil)

		_, err := svc.InitiateCall(ctx, ports.InitiateCallParams{TicketID: 3, Actor: owner})

		assert.ErrorIs(t, err, apperrors.ErrCallNotPermitted)
		broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})

	t.Run("admin may call on any ticket", func(t *testing.T) {
		ticketRepo := mocks.NewMockTicketRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := services.NewCallService(ticketRepo, broadcaster, clock.Fake(testEpoch), discardLogger())

		ticketRepo.On("GetByID", ctx, int64(3)).Return(ticketWith(domain.PriorityLow), nil)
		broadcaster.On("Broadcast", mock.Anything).Return(nil)

		call, err := svc.InitiateCall(ctx, ports.InitiateCallParams{TicketID: 3, Actor: identity(domain.RoleAdmin)})

		require.NoError(t, err)
		// the requester joins the call, not the admin who asked for it
		assert.Equal(t, owner.UserID.String(), call.Participants[0])
	})

	t.Run("strangers get not found", func(t *testing.T) {
		ticketRepo := mocks.NewMockTicketRepository()
		svc := services.NewCallService(ticketRepo, mocks.NewMockEventBroadcaster(), clock.Fake(testEpoch), discardLogger())
		ticketRepo.On("GetByID", ctx, int64(3)).Return(ticketWith(domain.PriorityHigh), nil)

		_, err := svc.InitiateCall(ctx, ports.InitiateCallParams{TicketID: 3, Actor: identity(domain.RoleUser)})
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	})
}
