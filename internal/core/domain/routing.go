package domain

// RouteAction is the follow-up chosen for an inbound chat message.
type RouteAction int

const (
	RouteNoAction RouteAction = iota
	RouteRespondWithAI
	RouteEscalate
)

func (a RouteAction) String() string {
	switch a {
	case RouteRespondWithAI:
		return "respond_with_ai"
	case RouteEscalate:
		return "escalate"
	default:
		return "no_action"
	}
}

// RouteInput is the slice of ticket state the decision table reads.
type RouteInput struct {
	Category TicketCategory
	Assigned bool
	Priority TicketPriority
}

// RouteInputFor captures the ticket state at the moment a message arrives.
func RouteInputFor(t *Ticket) RouteInput {
	return RouteInput{
		Category: t.Category,
		Assigned: t.IsAssigned(),
		Priority: t.Priority,
	}
}

// DecideRoute evaluates category x assignment x priority:
//
//	technical + assigned -> NoAction (a technician owns the conversation)
//	low | medium         -> RespondWithAI
//	high                 -> Escalate
//	anything else        -> NoAction
func DecideRoute(in RouteInput) RouteAction {
	if in.Category == CategoryTechnical && in.Assigned {
		return RouteNoAction
	}
	switch in.Priority {
	case PriorityLow, PriorityMedium:
		return RouteRespondWithAI
	case PriorityHigh:
		return RouteEscalate
	}
	return RouteNoAction
}
