package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanmayk/relaychat/internal/domain"
)

// ChatRepository handles chat persistence
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create creates a new chat. An empty title falls back to the default.
func (r *ChatRepository) Create(ctx context.Context, title string) (*domain.Chat, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultChatTitle
	}

	chat := &domain.Chat{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO chats (title, created_at)
		VALUES ($1, $2)
		RETURNING id, title, created_at
	`, title, time.Now().UTC()).Scan(&chat.ID, &chat.Title, &chat.CreatedAt)
	if err != nil {
		return nil, storageErr("creating chat", err)
	}

	return chat, nil
}

// List retrieves chats newest first, optionally filtered by a
// case-insensitive title substring, with limit/offset pagination.
func (r *ChatRepository) List(ctx context.Context, q string, limit, offset int) ([]*domain.Chat, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if q != "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, title, created_at FROM chats
			WHERE LOWER(title) LIKE '%' || LOWER($1) || '%'
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`, q, limit, offset)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, title, created_at FROM chats
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, storageErr("listing chats", err)
	}
	defer rows.Close()

	chats := []*domain.Chat{}
	for rows.Next() {
		chat := &domain.Chat{}
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// UpdateTitle renames a chat
func (r *ChatRepository) UpdateTitle(ctx context.Context, id int64, title string) (*domain.Chat, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	chat := &domain.Chat{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE chats SET title = $1 WHERE id = $2
		RETURNING id, title, created_at
	`, title, id).Scan(&chat.ID, &chat.Title, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("updating chat", err)
	}

	return chat, nil
}

// Delete removes a chat and all its messages in a single transaction.
// Any failure mid-sequence rolls back so no partial delete is observable.
func (r *ChatRepository) Delete(ctx context.Context, id int64) (*domain.DeletedChat, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("beginning delete", err)
	}
	defer tx.Rollback()

	deleted, err := r.deleteInTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("committing delete", err)
	}

	return deleted, nil
}

func (r *ChatRepository) deleteInTx(ctx context.Context, tx *sql.Tx, id int64) (*domain.DeletedChat, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, id); err != nil {
		return nil, storageErr("deleting messages", err)
	}

	deleted := &domain.DeletedChat{}
	err := tx.QueryRowContext(ctx, `
		DELETE FROM chats WHERE id = $1
		RETURNING id, title
	`, id).Scan(&deleted.ID, &deleted.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("deleting chat", err)
	}

	return deleted, nil
}
