package domain

// EventType defines the type of real-time event.
type EventType string

const (
	EventMessageSent   EventType = "MESSAGE_SENT"
	EventCallInitiated EventType = "CALL_INITIATED"
)

// Event is the envelope delivered to ticket subscribers.
type Event struct {
	Type     EventType   `json:"type"`
	Payload  interface{} `json:"payload"`
	TicketID int64       `json:"ticketId"` // Used for routing to ticket subscribers
}

// NewMessageEvent wraps a persisted chat message.
func NewMessageEvent(msg *ChatMessage) Event {
	return Event{
		Type:     EventMessageSent,
		Payload:  NewMessageSnapshot(msg),
		TicketID: msg.TicketID,
	}
}

// NewCallEvent wraps a freshly minted call descriptor.
func NewCallEvent(call *CallSession) Event {
	return Event{
		Type:     EventCallInitiated,
		Payload:  NewCallSnapshot(call),
		TicketID: call.TicketID,
	}
}
