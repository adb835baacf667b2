package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/metrics"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

// TicketAccess decides whether an identity may watch a ticket. It returns
// an error when the ticket is missing or hidden from the viewer.
type TicketAccess interface {
	GetTicket(ctx context.Context, ticketID int64, viewer *domain.Identity) (*domain.Ticket, error)
}

// Hub tracks connected clients. Ticket topics live in the event bus; the
// hub only owns connection bookkeeping.
type Hub struct {
	bus    *realtime.Bus
	access TicketAccess

	// clients maps user IDs to their active connections.
	// A single user can have multiple connections (multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]struct{}

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// done is closed when Run returns
	done chan struct{}

	// mu protects the clients map
	mu sync.RWMutex

	logger *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(bus *realtime.Bus, access TicketAccess, logger *slog.Logger) *Hub {
	return &Hub{
		bus:        bus,
		access:     access,
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Run processes registrations until ctx is cancelled, then closes every
// remaining client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and ends its subscriptions.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.identity.UserID
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	metrics.WebSocketConnections.Inc()

	h.logger.Info("client registered",
		"user_id", userID,
		"total_connections", len(h.clients[userID]),
	)
}

// unregisterClient removes a client from the hub and closes it
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	userID := client.identity.UserID
	if userClients, ok := h.clients[userID]; ok {
		if _, exists := userClients[client]; exists {
			delete(userClients, client)
			metrics.WebSocketConnections.Dec()
			if len(userClients) == 0 {
				delete(h.clients, userID)
			}
		}
	}
	h.mu.Unlock()

	client.close()

	h.logger.Info("client unregistered", "user_id", userID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	var all []*Client
	for userID, userClients := range h.clients {
		for client := range userClients {
			all = append(all, client)
			metrics.WebSocketConnections.Dec()
		}
		delete(h.clients, userID)
	}
	h.mu.Unlock()

	for _, client := range all {
		client.close()
	}
}

// GetClientCount returns the total number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, userClients := range h.clients {
		count += len(userClients)
	}
	return count
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
