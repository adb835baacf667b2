package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Outbound messages queued per connection before it counts as slow.
	sendBufferSize = 256

	// Upper bound for the access check behind a subscription.
	accessTimeout = 5 * time.Second
)

// Client message types.
const (
	TypeSubscribe   = "SUBSCRIBE_TO_TICKET"
	TypeUnsubscribe = "UNSUBSCRIBE_FROM_TICKET"
	TypePing        = "PING"
)

// Server reply types. Ticket events are sent as their own envelope.
const (
	TypeSubscribed   = "SUBSCRIBED"
	TypeUnsubscribed = "UNSUBSCRIBED"
	TypePong         = "PONG"
	TypeError        = "ERROR"
)

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload is the payload for subscribe/unsubscribe messages.
// Events narrows a subscription; empty means every event type.
type SubscribePayload struct {
	TicketID int64              `json:"ticketId"`
	Events   []domain.EventType `json:"events,omitempty"`
}

// ServerMessage is a control reply.
type ServerMessage struct {
	Type     string `json:"type"`
	TicketID int64  `json:"ticketId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client is a middleman between the websocket connection and the event bus.
// Each ticket subscription gets a forwarder goroutine feeding the send queue.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity *domain.Identity

	// send is the outbound queue drained by WritePump.
	send chan any

	// mu guards subs, closed, and sends on the queue
	mu     sync.RWMutex
	subs   map[int64]*realtime.Subscription
	closed bool

	logger *slog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, identity *domain.Identity, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan any, sendBufferSize),
		subs:     make(map[int64]*realtime.Subscription),
		logger:   logger.With("user_id", identity.UserID.String()),
	}
}

// Subscriptions returns the watched ticket IDs.
func (c *Client) Subscriptions() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	return ids
}

// enqueue queues msg without blocking. It fails when the client is closed
// or its queue is full.
func (c *Client) enqueue(msg any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close ends every subscription and the send queue. Safe to call twice.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	close(c.send)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// forward copies one subscription's events into the send queue.
func (c *Client) forward(sub *realtime.Subscription) {
	for event := range sub.Events() {
		if !c.enqueue(event) {
			c.logger.Warn("client send buffer full, unregistering", "ticket_id", sub.TicketID())
			c.hub.Unregister(c)
			return
		}
	}

	// The bus closes a lagging subscription on its own. If it is still
	// registered here, tell the client so it can subscribe again.
	c.mu.Lock()
	current, ok := c.subs[sub.TicketID()]
	dropped := ok && current == sub
	if dropped {
		delete(c.subs, sub.TicketID())
	}
	c.mu.Unlock()

	if dropped {
		c.logger.Warn("subscription dropped as slow consumer", "ticket_id", sub.TicketID())
		c.enqueue(ServerMessage{Type: TypeError, TicketID: sub.TicketID(), Error: "subscription dropped, subscribe again"})
	}
}

// ReadPump pumps messages from the websocket connection to the client.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps queued messages to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// --- Incoming Message Handling ---

// handleIncomingMessage processes messages received from the client
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		c.enqueue(ServerMessage{Type: TypeError, Error: "invalid message"})
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		c.handleSubscribe(msg.Payload)

	case TypeUnsubscribe:
		c.handleUnsubscribe(msg.Payload)

	case TypePing:
		c.enqueue(ServerMessage{Type: TypePong})

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
		c.enqueue(ServerMessage{Type: TypeError, Error: "unknown message type"})
	}
}

func (c *Client) handleSubscribe(payload json.RawMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TicketID <= 0 {
		c.enqueue(ServerMessage{Type: TypeError, Error: "invalid ticket id"})
		return
	}
	for _, kind := range p.Events {
		if kind != domain.EventMessageSent && kind != domain.EventCallInitiated {
			c.enqueue(ServerMessage{Type: TypeError, TicketID: p.TicketID, Error: "unknown event type"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), accessTimeout)
	defer cancel()
	if _, err := c.hub.access.GetTicket(ctx, p.TicketID, c.identity); err != nil {
		c.logger.Info("subscription refused", "ticket_id", p.TicketID, "error", err)
		c.enqueue(ServerMessage{Type: TypeError, TicketID: p.TicketID, Error: "ticket not found"})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if old, ok := c.subs[p.TicketID]; ok {
		// Resubscribing replaces the event filter.
		delete(c.subs, p.TicketID)
		old.Close()
	}
	sub := c.hub.bus.Subscribe(p.TicketID, p.Events...)
	c.subs[p.TicketID] = sub
	c.mu.Unlock()

	c.enqueue(ServerMessage{Type: TypeSubscribed, TicketID: p.TicketID})
	go c.forward(sub)

	c.logger.Debug("client subscribed to ticket", "ticket_id", p.TicketID)
}

func (c *Client) handleUnsubscribe(payload json.RawMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.enqueue(ServerMessage{Type: TypeError, Error: "invalid ticket id"})
		return
	}

	c.mu.Lock()
	sub, ok := c.subs[p.TicketID]
	if ok {
		delete(c.subs, p.TicketID)
	}
	c.mu.Unlock()

	if ok {
		sub.Close()
	}
	c.enqueue(ServerMessage{Type: TypeUnsubscribed, TicketID: p.TicketID})

	c.logger.Debug("client unsubscribed from ticket", "ticket_id", p.TicketID)
}
