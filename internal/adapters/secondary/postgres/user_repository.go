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

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool) ports.UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, full_name, email, role, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		id        pgtype.UUID
		user      domain.User
		role      string
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &user.FullName, &user.Email, &role, &createdAt); err != nil {
		return nil, err
	}
	user.ID = id.Bytes
	user.Role = domain.Role(role)
	user.CreatedAt = createdAt.Time.UTC()
	return &user, nil
}

// Upsert inserts the user or refreshes name, email and role. The original
// creation time is kept so load balancing tie-breaks stay stable.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	const query = `
INSERT INTO users (id, full_name, email, role, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
ON CONFLICT (id) DO UPDATE
SET full_name = EXCLUDED.full_name,
    email = EXCLUDED.email,
    role = EXCLUDED.role
RETURNING ` + userColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		pgtype.UUID{Bytes: user.ID, Valid: true},
		user.FullName,
		user.Email,
		string(user.Role),
		pgtype.Timestamptz{Time: user.CreatedAt, Valid: !user.CreatedAt.IsZero()},
	)
	saved, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperrors.ErrConflict
		}
		return nil, err
	}
	return saved, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query, pgtype.UUID{Bytes: id, Valid: true}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at ASC, id ASC`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
