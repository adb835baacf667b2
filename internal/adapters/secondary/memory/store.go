// Package memory keeps users, tickets and chat messages in process memory.
// It backs STORE_DRIVER=memory and the end-to-end service tests. Every
// read returns a copy, so callers can mutate results freely.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// ErrNoTransaction is returned by LockAssignments outside WithTransaction.
var ErrNoTransaction = errors.New("assignment lock requires a transaction")

// Store is the shared state behind the memory repositories.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*domain.User
	tickets  map[int64]*domain.Ticket
	messages map[int64][]*domain.ChatMessage

	nextTicketID  int64
	nextMessageID int64

	// assignMu serializes technician selection across transactions.
	assignMu sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*domain.User),
		tickets:  make(map[int64]*domain.Ticket),
		messages: make(map[int64][]*domain.ChatMessage),
	}
}

// ---- users ----

type UserRepository struct {
	s *Store
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(s *Store) ports.UserRepository {
	return &UserRepository{s: s}
}

func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.users {
		if id != user.ID && existing.Email == user.Email {
			return nil, apperrors.ErrConflict
		}
	}

	stored := *user
	if existing, ok := r.s.users[user.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.s.users[user.ID] = &stored

	out := stored
	return &out, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*domain.User, 0)
	for _, u := range r.s.users {
		if u.Role == role {
			out := *u
			users = append(users, &out)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID.String() < users[j].ID.String()
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// ---- tickets ----

type TicketRepository struct {
	s *Store
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

func NewTicketRepository(s *Store) ports.TicketRepository {
	return &TicketRepository{s: s}
}

func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextTicketID++
	stored := cloneTicket(ticket)
	stored.ID = r.s.nextTicketID
	stored.AssignedTechnician = nil
	r.s.tickets[stored.ID] = stored

	return cloneTicket(stored), nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	return cloneTicket(ticket), nil
}

func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	stored := cloneTicket(ticket)
	stored.AssignedTechnician = nil
	r.s.tickets[ticket.ID] = stored

	return cloneTicket(stored), nil
}

func (r *TicketRepository) List(ctx context.Context, params ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*domain.Ticket, 0)
	for _, t := range r.s.tickets {
		if params.RequesterID != nil && t.RequesterID != *params.RequesterID {
			continue
		}
		if params.AssignedTo != nil && !t.IsAssignedTo(*params.AssignedTo) {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		matched = append(matched, t)
	}

	// newest first
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := int(params.Offset)
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if params.Limit > 0 && start+int(params.Limit) < end {
		end = start + int(params.Limit)
	}

	out := make([]*domain.Ticket, 0, end-start)
	for _, t := range matched[start:end] {
		out = append(out, cloneTicket(t))
	}
	return out, nil
}

func (r *TicketRepository) CountByStatus(ctx context.Context, requesterID uuid.UUID) (domain.TicketCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var counts domain.TicketCounts
	for _, t := range r.s.tickets {
		if t.RequesterID == requesterID {
			counts.Add(t.Status, 1)
		}
	}
	return counts, nil
}

func (r *TicketRepository) ActiveAssignmentCounts(ctx context.Context, technicianIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(technicianIDs))
	for _, id := range technicianIDs {
		wanted[id] = true
	}

	counts := make(map[uuid.UUID]int64)
	for _, t := range r.s.tickets {
		if t.AssignedTo == nil || !t.Status.IsActive() || !wanted[*t.AssignedTo] {
			continue
		}
		counts[*t.AssignedTo]++
	}
	return counts, nil
}

// LockAssignments holds the store's assignment lock until the surrounding
// transaction finishes.
func (r *TicketRepository) LockAssignments(ctx context.Context) error {
	tx, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return ErrNoTransaction
	}
	if tx.holdsAssignLock {
		return nil
	}
	r.s.assignMu.Lock()
	tx.holdsAssignLock = true
	return nil
}

// ---- messages ----

type MessageRepository struct {
	s *Store
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

func NewMessageRepository(s *Store) ports.MessageRepository {
	return &MessageRepository{s: s}
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[msg.TicketID]; !ok {
		return nil, apperrors.ErrTicketNotFound
	}

	r.s.nextMessageID++
	stored := cloneMessage(msg)
	stored.ID = r.s.nextMessageID
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], stored)

	return cloneMessage(stored), nil
}

func (r *MessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]*domain.ChatMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored := r.s.messages[ticketID]
	out := make([]*domain.ChatMessage, len(stored))
	for i, m := range stored {
		out[i] = cloneMessage(m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- analytics ----

type AnalyticsRepository struct {
	s *Store
}

var _ ports.AnalyticsRepository = (*AnalyticsRepository)(nil)

func NewAnalyticsRepository(s *Store) ports.AnalyticsRepository {
	return &AnalyticsRepository{s: s}
}

func (r *AnalyticsRepository) Totals(ctx context.Context) (domain.DashboardTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	totals := domain.DashboardTotals{
		Users:   int64(len(r.s.users)),
		Tickets: int64(len(r.s.tickets)),
	}
	for _, t := range r.s.tickets {
		switch t.Status {
		case domain.StatusOpen:
			totals.OpenTickets++
		case domain.StatusResolved:
			totals.ResolvedTickets++
		}
	}
	return totals, nil
}

func (r *AnalyticsRepository) Overview(ctx context.Context, since, until time.Time) (*domain.AnalyticsOverview, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	overview := &domain.AnalyticsOverview{
		Since:    since,
		Until:    until,
		Volume:   make([]domain.VolumePoint, 0),
		Workload: make([]domain.WorkloadItem, 0),
	}

	days := make(map[time.Time]int)
	for day := utcDay(since); !day.After(utcDay(until)); day = day.AddDate(0, 0, 1) {
		days[day] = len(overview.Volume)
		overview.Volume = append(overview.Volume, domain.VolumePoint{Day: day})
	}

	var (
		settledHours float64
		settled      int
	)
	active := make(map[uuid.UUID]int64)
	for _, t := range r.s.tickets {
		if t.AssignedTo != nil && t.Status.IsActive() {
			active[*t.AssignedTo]++
		}
		if i, ok := days[utcDay(t.CreatedAt)]; ok {
			overview.Volume[i].Created++
		}
		if t.Status.IsSettled() && t.UpdatedAt != nil {
			if i, ok := days[utcDay(*t.UpdatedAt)]; ok {
				overview.Volume[i].Resolved++
			}
		}

		if t.CreatedAt.Before(since) || !t.CreatedAt.Before(until) {
			continue
		}
		overview.Status.Add(t.Status, 1)
		overview.Priority.Add(t.Priority, 1)
		if t.Status.IsSettled() && t.UpdatedAt != nil {
			settledHours += t.UpdatedAt.Sub(t.CreatedAt).Hours()
			settled++
		}
	}
	if settled > 0 {
		overview.ResolutionHours = settledHours / float64(settled)
	}

	for _, u := range r.s.users {
		if u.Role != domain.RoleTechnician {
			continue
		}
		overview.Workload = append(overview.Workload, domain.WorkloadItem{
			TechnicianID:  u.ID,
			FullName:      u.FullName,
			Email:         u.Email,
			ActiveTickets: active[u.ID],
		})
	}
	// busiest first
	sort.Slice(overview.Workload, func(i, j int) bool {
		a, b := overview.Workload[i], overview.Workload[j]
		if a.ActiveTickets != b.ActiveTickets {
			return a.ActiveTickets > b.ActiveTickets
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.Email < b.Email
	})
	return overview, nil
}

func utcDay(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---- transactions ----

type txKey struct{}

type txState struct {
	holdsAssignLock bool
}

// TransactionManager scopes the assignment lock. Writes apply immediately;
// the memory store has no rollback.
type TransactionManager struct {
	s *Store
}

var _ ports.TransactionManager = (*TransactionManager)(nil)

func NewTransactionManager(s *Store) ports.TransactionManager {
	return &TransactionManager{s: s}
}

func (m *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*txState); nested {
		return fn(ctx)
	}

	tx := &txState{}
	defer func() {
		if tx.holdsAssignLock {
			m.s.assignMu.Unlock()
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, tx))
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	if t.AssignedTo != nil {
		id := *t.AssignedTo
		out.AssignedTo = &id
	}
	if t.UpdatedAt != nil {
		ts := *t.UpdatedAt
		out.UpdatedAt = &ts
	}
	if t.AssignedTechnician != nil {
		info := *t.AssignedTechnician
		out.AssignedTechnician = &info
	}
	return &out
}

func cloneMessage(m *domain.ChatMessage) *domain.ChatMessage {
	out := *m
	if m.VoiceURL != nil {
		url := *m.VoiceURL
		out.VoiceURL = &url
	}
	return &out
}
