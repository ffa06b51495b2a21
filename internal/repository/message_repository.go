package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/spec-kit/uniticket/internal/domain"
)

const messageColumns = `id, ticket_id, sender_id, body, attachments, is_internal, is_system_message, created_at, updated_at`

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, sender_id, body, attachments, is_internal, is_system_message)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return errors.WithStack(r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Body,
		nonNilAttachments(msg.Attachments),
		msg.IsInternal,
		msg.IsSystemMessage,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt))
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var msg domain.Message
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if err := scanMessage(row, &msg); err != nil {
		return nil, errors.WithStack(notFoundOr(err))
	}
	return &msg, nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Message, error) {
	if !validID(ticketID) {
		return []domain.Message{}, nil
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ticket_id=$1`
	if !includeInternal {
		query += ` AND is_internal=FALSE`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	result := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, errors.WithStack(err)
		}
		result = append(result, msg)
	}
	return result, errors.WithStack(rows.Err())
}

func (r *messageRepository) Update(ctx context.Context, msg *domain.Message) error {
	const query = `
        UPDATE messages SET body=$1, attachments=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	if !validID(msg.ID) {
		return ErrNotFound
	}
	err := r.pool.QueryRow(ctx, query, msg.Body, nonNilAttachments(msg.Attachments), msg.ID).Scan(&msg.UpdatedAt)
	return errors.WithStack(notFoundOr(err))
}

func (r *messageRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return errors.WithStack(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row, msg *domain.Message) error {
	return row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderID,
		&msg.Body,
		&msg.Attachments,
		&msg.IsInternal,
		&msg.IsSystemMessage,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
}
