package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// assignmentLockKey is the advisory lock taken while a technician is chosen.
// The value is arbitrary but must be shared by every API instance.
const assignmentLockKey int64 = 0x68656c70646b

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) ports.TicketRepository {
	return &TicketRepository{pool: pool}
}

const ticketColumns = `id, requester_id, description, status, priority, category,
       requires_technician, assigned_to, created_at, updated_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t           domain.Ticket
		requesterID pgtype.UUID
		assignedTo  pgtype.UUID
		status      string
		priority    string
		category    string
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&t.ID,
		&requesterID,
		&t.Description,
		&status,
		&priority,
		&category,
		&t.RequiresTechnician,
		&assignedTo,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.RequesterID = requesterID.Bytes
	t.Status = domain.TicketStatus(status)
	t.Priority = domain.TicketPriority(priority)
	t.Category = domain.TicketCategory(category)
	t.CreatedAt = createdAt.Time.UTC()
	t.AssignedTo = uuidPtr(assignedTo)
	t.UpdatedAt = timePtr(updatedAt)
	return &t, nil
}

func collectTickets(rows pgx.Rows) ([]*domain.Ticket, error) {
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return apperrors.ErrUserNotFound
	}
	return err
}

// Create persists a new ticket entity.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
INSERT INTO tickets (requester_id, description, status, priority, category,
                     requires_technician, assigned_to, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + ticketColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		pgtype.UUID{Bytes: ticket.RequesterID, Valid: true},
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		string(ticket.Category),
		ticket.RequiresTechnician,
		nullableUUID(ticket.AssignedTo),
		ticket.CreatedAt,
		nullableTime(ticket.UpdatedAt),
	)
	created, err := scanTicket(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

// GetByID retrieves a single ticket by its ID.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// Update persists the mutable fields of an existing ticket.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
UPDATE tickets
SET status = $2,
    assigned_to = $3,
    updated_at = $4
WHERE id = $1
RETURNING ` + ticketColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		string(ticket.Status),
		nullableUUID(ticket.AssignedTo),
		nullableTime(ticket.UpdatedAt),
	)
	updated, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, mapWriteError(err)
	}
	return updated, nil
}

// List returns tickets newest first. A non-positive limit returns every match.
func (r *TicketRepository) List(ctx context.Context, params ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	const query = `
SELECT ` + ticketColumns + `
FROM tickets
WHERE ($1::uuid IS NULL OR requester_id = $1)
  AND ($2::uuid IS NULL OR assigned_to = $2)
  AND ($3::text IS NULL OR status = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5
`
	var status pgtype.Text
	if params.Status != nil {
		status = pgtype.Text{String: string(*params.Status), Valid: true}
	}
	limit := pgtype.Int4{Int32: params.Limit, Valid: params.Limit > 0}

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query,
		nullableUUID(params.RequesterID),
		nullableUUID(params.AssignedTo),
		status,
		limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// CountByStatus tallies a requester's tickets per status.
func (r *TicketRepository) CountByStatus(ctx context.Context, requesterID uuid.UUID) (domain.TicketCounts, error) {
	const query = `
SELECT status, COUNT(*)
FROM tickets
WHERE requester_id = $1
GROUP BY status
`
	var counts domain.TicketCounts

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, pgtype.UUID{Bytes: requesterID, Valid: true})
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		counts.Add(domain.TicketStatus(status), n)
	}
	return counts, rows.Err()
}

// ActiveAssignmentCounts counts open and in-progress tickets per technician.
func (r *TicketRepository) ActiveAssignmentCounts(ctx context.Context, technicianIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64)
	if len(technicianIDs) == 0 {
		return counts, nil
	}

	const query = `
SELECT assigned_to, COUNT(*)
FROM tickets
WHERE assigned_to = ANY($1)
  AND status IN ('open', 'in-progress')
GROUP BY assigned_to
`
	ids := make([]pgtype.UUID, len(technicianIDs))
	for i, id := range technicianIDs {
		ids[i] = pgtype.UUID{Bytes: id, Valid: true}
	}

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id pgtype.UUID
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[uuid.UUID(id.Bytes)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// LockAssignments takes a transaction-scoped advisory lock. It is released
// on commit or rollback.
func (r *TicketRepository) LockAssignments(ctx context.Context) error {
	tx, ok := TxFromContext(ctx)
	if !ok {
		return ErrNoTransaction
	}
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, assignmentLockKey)
	return err
}
