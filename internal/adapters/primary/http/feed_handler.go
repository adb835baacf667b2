package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

// DefaultFeedHeartbeat keeps idle proxies from closing the stream.
const DefaultFeedHeartbeat = 25 * time.Second

// feedKinds maps the short names accepted in ?events= to event types.
var feedKinds = map[string]domain.EventType{
	"message":                         domain.EventMessageSent,
	"call":                            domain.EventCallInitiated,
	string(domain.EventMessageSent):   domain.EventMessageSent,
	string(domain.EventCallInitiated): domain.EventCallInitiated,
}

// FeedHandler streams a ticket's events as server-sent events.
type FeedHandler struct {
	ticketService ports.TicketService
	bus           *realtime.Bus
	heartbeat     time.Duration
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

func NewFeedHandler(
	ticketService ports.TicketService,
	bus *realtime.Bus,
	heartbeat time.Duration,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *FeedHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultFeedHeartbeat
	}
	return &FeedHandler{
		ticketService: ticketService,
		bus:           bus,
		heartbeat:     heartbeat,
		errorHandler:  errorHandler,
		logger:        logger.With("handler", "feed"),
	}
}

// RegisterRoutes adds the feed route to the /tickets router.
func (h *FeedHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{ticketID}/feed", h.HandleFeed)
}

// HandleFeed handles GET /tickets/{ticketID}/feed?events=message,call
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	kinds, err := parseFeedKinds(r.URL.Query().Get("events"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	// Same visibility rule as reading the ticket.
	if _, err := h.ticketService.GetTicket(ctx, ticketID, mw.GetIdentity(ctx)); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	sub := h.bus.Subscribe(ticketID, kinds...)
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "streaming not supported", "error", err)
		return
	}

	h.logger.DebugContext(ctx, "feed opened", "ticket_id", ticketID)
	defer h.logger.DebugContext(ctx, "feed closed", "ticket_id", ticketID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				// Dropped as a slow consumer; the client reconnects.
				return
			}
			if err := writeSSE(w, event); err != nil {
				h.logger.WarnContext(ctx, "feed write failed", "ticket_id", ticketID, "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}

// parseFeedKinds reads a comma separated list. Empty means every kind.
func parseFeedKinds(raw string) ([]domain.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var kinds []domain.EventType
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		kind, ok := feedKinds[name]
		if !ok {
			return nil, validation.FieldError("events", "Must be a list of: message, call")
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
