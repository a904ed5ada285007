package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/domain"
	"github.com/tanmayk/relaychat/internal/repository"
)

const defaultListLimit = 50

// ChatService maps registry operations onto the persistence gateway,
// validating required fields before touching storage.
type ChatService struct {
	chats    *repository.ChatRepository
	messages *repository.MessageRepository
	logger   *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	chats *repository.ChatRepository,
	messages *repository.MessageRepository,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		logger:   logger,
	}
}

// ListChats returns chats filtered by an optional case-insensitive title
// substring, paginated by limit/offset.
func (s *ChatService) ListChats(ctx context.Context, q string, limit, offset int) ([]*domain.Chat, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("limit and offset must be non-negative: %w", domain.ErrInvalidRequest)
	}
	if limit == 0 {
		limit = defaultListLimit
	}

	return s.chats.List(ctx, q, limit, offset)
}

// CreateChat creates a chat, defaulting an empty title
func (s *ChatService) CreateChat(ctx context.Context, title string) (*domain.Chat, error) {
	chat, err := s.chats.Create(ctx, title)
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat created", zap.Int64("chat_id", chat.ID), zap.String("title", chat.Title))
	return chat, nil
}

// RenameChat updates a chat's title
func (s *ChatService) RenameChat(ctx context.Context, id int64, title string) (*domain.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrInvalidRequest)
	}

	return s.chats.UpdateTitle(ctx, id, title)
}

// DeleteChat removes a chat and its messages atomically
func (s *ChatService) DeleteChat(ctx context.Context, id int64) (*domain.DeletedChat, error) {
	deleted, err := s.chats.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat deleted", zap.Int64("chat_id", deleted.ID))
	return deleted, nil
}

// ListMessages returns a chat's messages in creation order
func (s *ChatService) ListMessages(ctx context.Context, chatID int64) ([]*domain.Message, error) {
	return s.messages.ListByChat(ctx, chatID)
}

// SaveMessage appends a message to a chat. Role defaults to user; the code
// payload is only honored for assistant messages.
func (s *ChatService) SaveMessage(ctx context.Context, req *domain.SaveMessageRequest) (*domain.Message, error) {
	if req.ChatID <= 0 || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("chatId and content are required: %w", domain.ErrInvalidRequest)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return nil, fmt.Errorf("role must be user or assistant: %w", domain.ErrInvalidRequest)
	}

	return s.messages.Append(ctx, req.ChatID, role, req.Content, req.Code)
}
