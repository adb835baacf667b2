package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

// ticketTable grants access to the tickets it lists.
type ticketTable map[int64]uuid.UUID

func (t ticketTable) GetTicket(_ context.Context, ticketID int64, viewer *domain.Identity) (*domain.Ticket, error) {
	owner, ok := t[ticketID]
	if !ok || owner != viewer.UserID {
		return nil, apperrors.ErrTicketNotFound
	}
	return &domain.Ticket{ID: ticketID, RequesterID: owner, Status: domain.StatusOpen}, nil
}

type harness struct {
	bus  *realtime.Bus
	hub  *Hub
	user uuid.UUID
	url  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	user := uuid.New()
	bus := realtime.NewBus(8, logger)
	hub := NewHub(bus, ticketTable{7: user}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, &domain.Identity{UserID: user, Role: domain.RoleUser}, logger)
		if !hub.Register(client) {
			_ = conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	return &harness{
		bus:  bus,
		hub:  hub,
		user: user,
		url:  "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.hub.IsUserConnected(h.user) }, time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: msgType, Payload: raw}))
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, TypeSubscribe, SubscribePayload{TicketID: 7, Events: []domain.EventType{domain.EventMessageSent}})
	reply := readMessage(t, conn)
	assert.Equal(t, TypeSubscribed, reply["type"])
	assert.EqualValues(t, 7, reply["ticketId"])
	assert.Equal(t, 1, h.bus.SubscriberCount(7))

	call := domain.NewCallSession(7, h.user, domain.CallTypeAudio, time.Now())
	msg := &domain.ChatMessage{ID: 3, TicketID: 7, Sender: domain.SenderAI, Message: "Try restarting", MessageType: domain.MessageTypeText, CreatedAt: time.Now()}
	require.NoError(t, h.bus.Broadcast(domain.NewCallEvent(call)))
	require.NoError(t, h.bus.Broadcast(domain.NewMessageEvent(msg)))

	event := readMessage(t, conn)
	assert.Equal(t, string(domain.EventMessageSent), event["type"])
	payload, ok := event["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3", payload["id"])
	assert.Equal(t, "ai", payload["sender"])
}

func TestClient_SubscribeRefusedForHiddenTicket(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, TypeSubscribe, SubscribePayload{TicketID: 99})
	reply := readMessage(t, conn)

	assert.Equal(t, TypeError, reply["type"])
	assert.Equal(t, "ticket not found", reply["error"])
	assert.Equal(t, 0, h.bus.SubscriberCount(99))
}

func TestClient_RejectsUnknownEventKind(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, TypeSubscribe, map[string]any{"ticketId": 7, "events": []string{"TYPING"}})
	reply := readMessage(t, conn)

	assert.Equal(t, TypeError, reply["type"])
	assert.Equal(t, "unknown event type", reply["error"])
}

func TestClient_Unsubscribe(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, TypeSubscribe, SubscribePayload{TicketID: 7})
	require.Equal(t, TypeSubscribed, readMessage(t, conn)["type"])

	send(t, conn, TypeUnsubscribe, SubscribePayload{TicketID: 7})
	reply := readMessage(t, conn)
	assert.Equal(t, TypeUnsubscribed, reply["type"])
	assert.Eventually(t, func() bool { return h.bus.SubscriberCount(7) == 0 }, time.Second, 5*time.Millisecond)
}

func TestClient_PingAndUnknownType(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, TypePing, struct{}{})
	assert.Equal(t, TypePong, readMessage(t, conn)["type"])

	send(t, conn, "SHOUT", struct{}{})
	reply := readMessage(t, conn)
	assert.Equal(t, TypeError, reply["type"])
	assert.Equal(t, "unknown message type", reply["error"])
}

func TestHub_DisconnectReleasesSubscriptions(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, TypeSubscribe, SubscribePayload{TicketID: 7})
	require.Equal(t, TypeSubscribed, readMessage(t, conn)["type"])
	require.Equal(t, 1, h.hub.GetClientCount())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return h.hub.GetClientCount() == 0 && h.bus.SubscriberCount(7) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
