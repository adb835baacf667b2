package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// MessageRepository stores chat messages. Rows are append-only.
type MessageRepository struct {
	pool *pgxpool.Pool
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

func NewMessageRepository(pool *pgxpool.Pool) ports.MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `id, ticket_id, sender, message, message_type, voice_url, created_at`

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var (
		msg         domain.ChatMessage
		sender      string
		messageType string
		voiceURL    pgtype.Text
		createdAt   pgtype.Timestamptz
	)
	if err := row.Scan(&msg.ID, &msg.TicketID, &sender, &msg.Message, &messageType, &voiceURL, &createdAt); err != nil {
		return nil, err
	}
	msg.Sender = domain.Sender(sender)
	msg.MessageType = domain.MessageType(messageType)
	msg.CreatedAt = createdAt.Time.UTC()
	msg.VoiceURL = textPtr(voiceURL)
	return &msg, nil
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	const query = `
INSERT INTO chat_messages (ticket_id, sender, message, message_type, voice_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + messageColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		msg.TicketID,
		string(msg.Sender),
		msg.Message,
		string(msg.MessageType),
		nullableText(msg.VoiceURL),
		msg.CreatedAt,
	)
	created, err := scanMessage(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *MessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]*domain.ChatMessage, error) {
	const query = `
SELECT ` + messageColumns + `
FROM chat_messages
WHERE ticket_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
