// Package assistant exposes the streaming send endpoint. Once the SSE
// content type is committed there is no way to send a late 4xx/5xx, so
// mid-stream failures only close the stream.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/domain"
	"github.com/tanmayk/relaychat/internal/service"
)

// Handler handles assistant streaming requests
type Handler struct {
	assistantService *service.AssistantService
	logger           *zap.Logger
}

// NewHandler creates a new assistant handler
func NewHandler(assistantService *service.AssistantService, logger *zap.Logger) *Handler {
	return &Handler{assistantService: assistantService, logger: logger}
}

// RegisterRoutes registers assistant routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/send", h.Send)
}

// sseFrame is the wire shape of one data frame
type sseFrame struct {
	Content string `json:"content"`
	DBSaved *bool  `json:"db_saved,omitempty"`
	HasCode *bool  `json:"has_code,omitempty"`
}

// Send relays a streamed assistant reply over SSE
func (h *Handler) Send(c *gin.Context) {
	var req domain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message and chat_id required"})
		return
	}

	stream, err := h.assistantService.Send(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-stream
		if !ok {
			return false
		}

		switch chunk.Type {
		case domain.ChunkContent:
			writeFrame(w, sseFrame{Content: chunk.Content})
			return true
		case domain.ChunkDone:
			writeFrame(w, sseFrame{
				Content: "[DONE]",
				DBSaved: &chunk.DBSaved,
				HasCode: &chunk.HasCode,
			})
			return false
		default:
			// Error chunk: close without a structured client-visible error.
			return false
		}
	})
}

func writeFrame(w io.Writer, frame sseFrame) {
	data, _ := json.Marshal(frame)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message and chat_id required"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	default:
		h.logger.Error("Failed to start assistant stream", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start assistant stream"})
	}
}
