package realtime

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/metrics"
)

// DefaultBufferSize is the per-subscriber queue depth.
const DefaultBufferSize = 64

// ErrInvalidTicket is returned when an event carries no ticket scope.
var ErrInvalidTicket = errors.New("event has no ticket id")

// Bus is the single in-process fan-out point. Transports (WebSocket, SSE)
// subscribe to it; services publish to it once per event.
//
// Each ticket with at least one subscriber owns a topic entry. The entry is
// created by the first Subscribe and removed when the last subscription
// closes, so the registry only holds tickets somebody is watching.
type Bus struct {
	mu         sync.Mutex
	topics     map[int64]map[*Subscription]struct{}
	bufferSize int
	logger     *slog.Logger
}

var _ ports.EventBroadcaster = (*Bus)(nil)

// NewBus creates an empty bus. bufferSize <= 0 uses DefaultBufferSize.
func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		topics:     make(map[int64]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		logger:     logger.With("component", "event_bus"),
	}
}

// Subscription is one consumer's view of a ticket's events.
type Subscription struct {
	bus      *Bus
	ticketID int64
	kinds    map[domain.EventType]struct{}
	ch       chan domain.Event
	closed   bool // guarded by bus.mu
}

// Subscribe registers interest in ticketID. With no kinds every event type
// is delivered. The returned channel is closed when the subscription ends,
// either through Close or because the consumer fell too far behind.
func (b *Bus) Subscribe(ticketID int64, kinds ...domain.EventType) *Subscription {
	sub := &Subscription{
		bus:      b,
		ticketID: ticketID,
		ch:       make(chan domain.Event, b.bufferSize),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[domain.EventType]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topics[ticketID]
	if !ok {
		topic = make(map[*Subscription]struct{})
		b.topics[ticketID] = topic
		metrics.ActiveTopics.Inc()
	}
	topic[sub] = struct{}{}
	metrics.ActiveSubscriptions.Inc()

	b.logger.Debug("subscription added",
		"ticket_id", ticketID,
		"subscribers", len(topic),
	)
	return sub
}

// Broadcast delivers event to every current subscriber of event.TicketID in
// publish order. Delivery never blocks: a subscriber whose buffer is full is
// dropped and its channel closed.
func (b *Bus) Broadcast(event domain.Event) error {
	if event.TicketID <= 0 {
		return ErrInvalidTicket
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()

	topic, ok := b.topics[event.TicketID]
	if !ok {
		return nil
	}

	for sub := range topic {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("subscriber buffer full, dropping subscription",
				"ticket_id", event.TicketID,
				"event_type", event.Type,
			)
			metrics.SlowSubscribersDropped.Inc()
			b.removeLocked(sub)
		}
	}
	return nil
}

// TopicCount returns the number of tickets with at least one subscriber.
func (b *Bus) TopicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

// SubscriberCount returns the number of live subscriptions for a ticket.
func (b *Bus) SubscriberCount(ticketID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[ticketID])
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	metrics.ActiveSubscriptions.Dec()

	topic, ok := b.topics[sub.ticketID]
	if !ok {
		return
	}
	delete(topic, sub)
	if len(topic) == 0 {
		delete(b.topics, sub.ticketID)
		metrics.ActiveTopics.Dec()
	}
}

// Events returns the delivery channel.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// TicketID returns the ticket this subscription watches.
func (s *Subscription) TicketID() int64 {
	return s.ticketID
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s)
}

func (s *Subscription) wants(t domain.EventType) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[t]
	return ok
}
