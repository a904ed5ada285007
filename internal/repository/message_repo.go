package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tanmayk/relaychat/internal/domain"
)

// MessageRepository handles message persistence
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListByChat retrieves all messages for a chat ordered by creation time,
// ties broken by id.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, code, created_at
		FROM messages WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, storageErr("listing messages", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		message := &domain.Message{}
		var code sql.NullString

		if err := rows.Scan(&message.ID, &message.ChatID, &message.Role,
			&message.Content, &code, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		if code.Valid {
			message.Code = code.String
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// Append inserts a message into a chat. The code payload is only stored for
// assistant messages. Referencing a missing chat fails with ErrNotFound; the
// foreign key check runs inside the insert so an append racing a committed
// chat deletion cannot land on a ghost row.
func (r *MessageRepository) Append(ctx context.Context, chatID int64, role, content, code string) (*domain.Message, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	var codeVal any
	if role == domain.RoleAssistant && code != "" {
		codeVal = code
	}

	message := &domain.Message{}
	var scanned sql.NullString
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (chat_id, role, content, code, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, chat_id, role, content, code, created_at
	`, chatID, role, content, codeVal, time.Now().UTC()).Scan(
		&message.ID, &message.ChatID, &message.Role,
		&message.Content, &scanned, &message.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("chat %d: %w", chatID, domain.ErrNotFound)
		}
		return nil, storageErr("appending message", err)
	}

	if scanned.Valid {
		message.Code = scanned.String
	}
	return message, nil
}
