package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestDecideRoute(t *testing.T) {
	tests := []struct {
		name string
		in   domain.RouteInput
		want domain.RouteAction
	}{
		{"general low unassigned", domain.RouteInput{domain.CategoryGeneral, false, domain.PriorityLow}, domain.RouteRespondWithAI},
		{"general medium unassigned", domain.RouteInput{domain.CategoryGeneral, false, domain.PriorityMedium}, domain.RouteRespondWithAI},
		{"general high unassigned", domain.RouteInput{domain.CategoryGeneral, false, domain.PriorityHigh}, domain.RouteEscalate},
		{"general low assigned still gets AI", domain.RouteInput{domain.CategoryGeneral, true, domain.PriorityLow}, domain.RouteRespondWithAI},
		{"general high assigned escalates", domain.RouteInput{domain.CategoryGeneral, true, domain.PriorityHigh}, domain.RouteEscalate},
		{"technical low unassigned gets AI", domain.RouteInput{domain.CategoryTechnical, false, domain.PriorityLow}, domain.RouteRespondWithAI},
		{"technical high unassigned escalates", domain.RouteInput{domain.CategoryTechnical, false, domain.PriorityHigh}, domain.RouteEscalate},
		{"technical low assigned", domain.RouteInput{domain.CategoryTechnical, true, domain.PriorityLow}, domain.RouteNoAction},
		{"technical medium assigned", domain.RouteInput{domain.CategoryTechnical, true, domain.PriorityMedium}, domain.RouteNoAction},
		{"technical high assigned", domain.RouteInput{domain.CategoryTechnical, true, domain.PriorityHigh}, domain.RouteNoAction},
		{"unknown priority", domain.RouteInput{domain.CategoryGeneral, false, domain.TicketPriority("")}, domain.RouteNoAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.DecideRoute(tt.in))
		})
	}
}

func TestRouteInputFor_TracksAssignment(t *testing.T) {
	ticket := &domain.Ticket{Category: domain.CategoryTechnical, Priority: domain.PriorityLow}
	assert.Equal(t, domain.RouteRespondWithAI, domain.DecideRoute(domain.RouteInputFor(ticket)))

	techID := uuid.New()
	ticket.AssignedTo = &techID
	assert.Equal(t, domain.RouteNoAction, domain.DecideRoute(domain.RouteInputFor(ticket)))
}

func TestRouteAction_String(t *testing.T) {
	assert.Equal(t, "respond_with_ai", domain.RouteRespondWithAI.String())
	assert.Equal(t, "escalate", domain.RouteEscalate.String())
	assert.Equal(t, "no_action", domain.RouteNoAction.String())
}

func TestLeastLoaded(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	t.Run("empty pool", func(t *testing.T) {
		_, ok := domain.LeastLoaded(nil)
		assert.False(t, ok)
	})

	t.Run("minimum wins", func(t *testing.T) {
		got, ok := domain.LeastLoaded([]domain.TechnicianLoad{
			{TechnicianID: a, ActiveTickets: 3},
			{TechnicianID: b, ActiveTickets: 1},
			{TechnicianID: c, ActiveTickets: 2},
		})
		assert.True(t, ok)
		assert.Equal(t, b, got.TechnicianID)
	})

	t.Run("ties go to the first entry", func(t *testing.T) {
		got, ok := domain.LeastLoaded([]domain.TechnicianLoad{
			{TechnicianID: a, ActiveTickets: 1},
			{TechnicianID: b, ActiveTickets: 0},
			{TechnicianID: c, ActiveTickets: 0},
		})
		assert.True(t, ok)
		assert.Equal(t, b, got.TechnicianID)
	})
}
