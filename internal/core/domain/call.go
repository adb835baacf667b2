package domain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdminParticipant is the placeholder participant standing in for whichever
// agent picks the call up.
const AdminParticipant = "admin"

// CallType is the media requested for a call.
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (c CallType) IsValid() bool {
	return c == CallTypeAudio || c == CallTypeVideo
}

// CallSession is an ephemeral call descriptor. It is only ever published,
// never stored.
type CallSession struct {
	Type         CallType
	TicketID     int64
	CallID       string
	Participants []string
	Timestamp    time.Time
}

// NewCallSession mints a call descriptor for the requester and the admin placeholder.
func NewCallSession(ticketID int64, requesterID uuid.UUID, callType CallType, now time.Time) *CallSession {
	if callType == "" {
		callType = CallTypeAudio
	}
	return &CallSession{
		Type:         callType,
		TicketID:     ticketID,
		CallID:       NewCallID(now),
		Participants: []string{requesterID.String(), AdminParticipant},
		Timestamp:    now,
	}
}

// NewCallID combines a millisecond timestamp with 32 random bits taken
// from a v4 uuid.
func NewCallID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("call-%d-%s", now.UnixMilli(), hex.EncodeToString(u[:4]))
}
