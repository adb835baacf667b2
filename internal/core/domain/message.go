package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

const MaxMessageLength = 4000

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser       Sender = "user"
	SenderTechnician Sender = "technician"
	SenderAdmin      Sender = "admin"
	SenderAI         Sender = "ai"
)

func (s Sender) IsValid() bool {
	switch s {
	case SenderUser, SenderTechnician, SenderAdmin, SenderAI:
		return true
	}
	return false
}

// IsStaff reports whether a human agent wrote the message.
func (s Sender) IsStaff() bool {
	return s == SenderTechnician || s == SenderAdmin
}

// SenderForRole maps a caller role onto the sender recorded on their messages.
func SenderForRole(role Role) Sender {
	switch role {
	case RoleTechnician:
		return SenderTechnician
	case RoleAdmin:
		return SenderAdmin
	default:
		return SenderUser
	}
}

// MessageType distinguishes typed chat from recorded audio.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
)

func (m MessageType) IsValid() bool {
	return m == MessageTypeText || m == MessageTypeVoice
}

// ChatMessage is an immutable entry in a ticket's conversation.
type ChatMessage struct {
	ID          int64
	TicketID    int64
	Sender      Sender
	Message     string
	MessageType MessageType
	VoiceURL    *string
	CreatedAt   time.Time
}

// MessageParams holds the fields for a new chat message.
type MessageParams struct {
	TicketID    int64
	Sender      Sender
	Message     string
	MessageType MessageType
	VoiceURL    string
	CreatedAt   time.Time
}

// NewChatMessage validates params. Text messages carry text only; voice
// messages must reference stored audio and may carry a transcript.
func NewChatMessage(params MessageParams) (*ChatMessage, error) {
	if !params.Sender.IsValid() {
		return nil, apperrors.ErrInvalidSender
	}

	messageType := params.MessageType
	if messageType == "" {
		messageType = MessageTypeText
	}
	if !messageType.IsValid() {
		return nil, apperrors.ErrInvalidMessageType
	}

	text := strings.TrimSpace(params.Message)
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperrors.ErrMessageTooLong
	}

	msg := &ChatMessage{
		TicketID:    params.TicketID,
		Sender:      params.Sender,
		Message:     text,
		MessageType: messageType,
		CreatedAt:   params.CreatedAt,
	}

	switch messageType {
	case MessageTypeText:
		if text == "" {
			return nil, apperrors.ErrMessageRequired
		}
		if params.VoiceURL != "" {
			return nil, apperrors.ErrVoiceURLNotAllowed
		}
	case MessageTypeVoice:
		if params.VoiceURL == "" {
			return nil, apperrors.ErrVoiceURLRequired
		}
		url := params.VoiceURL
		msg.VoiceURL = &url
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg, nil
}

// HasText reports whether the message carries text usable in a prompt.
func (m *ChatMessage) HasText() bool {
	return m.Message != ""
}

// IsVoice reports whether the message references recorded audio.
func (m *ChatMessage) IsVoice() bool {
	return m.MessageType == MessageTypeVoice && m.VoiceURL != nil
}
