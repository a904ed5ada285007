package chats

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/domain"
	"github.com/tanmayk/relaychat/internal/service"
)

// Handler handles chat registry requests
type Handler struct {
	chatService *service.ChatService
	logger      *zap.Logger
}

// NewHandler creates a new chats handler
func NewHandler(chatService *service.ChatService, logger *zap.Logger) *Handler {
	return &Handler{chatService: chatService, logger: logger}
}

// RegisterRoutes registers chat registry routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.PUT("/:chatId", h.Update)
	r.DELETE("/:chatId", h.Delete)
	r.GET("/messages/:chatId", h.Messages)
	r.POST("/messages/send", h.SaveMessage)
}

// List returns chats, optionally filtered by title substring and paginated
func (h *Handler) List(c *gin.Context) {
	limit, err := parseQueryInt(c, "limit", 50)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	offset, err := parseQueryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		h.fail(c, err, "Failed to fetch chats")
		return
	}

	c.JSON(http.StatusOK, chats)
}

// Create creates a chat with the provided or default title
func (h *Handler) Create(c *gin.Context) {
	var req domain.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		h.fail(c, err, "Failed to create chat")
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// Update renames a chat
func (h *Handler) Update(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	var req domain.UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	chat, err := h.chatService.RenameChat(c.Request.Context(), chatID, req.Title)
	if err != nil {
		h.fail(c, err, "Failed to update chat")
		return
	}

	c.JSON(http.StatusOK, chat)
}

// Delete removes a chat and its messages
func (h *Handler) Delete(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	deleted, err := h.chatService.DeleteChat(c.Request.Context(), chatID)
	if err != nil {
		h.fail(c, err, "Failed to delete chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted", "chat": deleted})
}

// Messages returns a chat's messages in creation order
func (h *Handler) Messages(c *gin.Context) {
	chatID, ok := h.chatID(c)
	if !ok {
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		h.fail(c, err, "Failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SaveMessage appends a message to a chat
func (h *Handler) SaveMessage(c *gin.Context) {
	var req domain.SaveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatId and content are required"})
		return
	}

	message, err := h.chatService.SaveMessage(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err, "Failed to save message")
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *Handler) chatID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return 0, false
	}
	return id, true
}

// fail maps domain errors to the HTTP taxonomy; raw storage errors never
// reach the client.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": reason(err)})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// reason strips wrap context down to the leading human-readable clause
func reason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		return msg[:i]
	}
	return msg
}

func parseQueryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidRequest
	}
	return n, nil
}
