package domain

import (
	"strconv"
	"time"
)

// MessageSnapshot matches the API response shape for chat messages.
type MessageSnapshot struct {
	ID          string  `json:"id"`
	TicketID    int64   `json:"ticketId"`
	Sender      string  `json:"sender"`
	Message     string  `json:"message"`
	MessageType string  `json:"messageType"`
	VoiceURL    *string `json:"voiceUrl"`
	CreatedAt   string  `json:"createdAt"`
}

// CallSnapshot matches the API response shape for call descriptors.
type CallSnapshot struct {
	Type         string   `json:"type"`
	TicketID     int64    `json:"ticketId"`
	CallID       string   `json:"callId"`
	Participants []string `json:"participants"`
	Timestamp    string   `json:"timestamp"`
}

// NewMessageSnapshot builds a message snapshot from a domain message.
func NewMessageSnapshot(msg *ChatMessage) MessageSnapshot {
	return MessageSnapshot{
		ID:          strconv.FormatInt(msg.ID, 10),
		TicketID:    msg.TicketID,
		Sender:      string(msg.Sender),
		Message:     msg.Message,
		MessageType: string(msg.MessageType),
		VoiceURL:    msg.VoiceURL,
		CreatedAt:   msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// NewCallSnapshot builds a call snapshot from a call descriptor.
func NewCallSnapshot(call *CallSession) CallSnapshot {
	participants := make([]string, len(call.Participants))
	copy(participants, call.Participants)
	return CallSnapshot{
		Type:         string(call.Type),
		TicketID:     call.TicketID,
		CallID:       call.CallID,
		Participants: participants,
		Timestamp:    call.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
