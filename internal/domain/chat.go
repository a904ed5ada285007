package domain

import "time"

// DefaultChatTitle is used when a chat is created without a title.
const DefaultChatTitle = "New Chat"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat represents a conversation container
type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message represents one turn in a chat
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"` // user, assistant
	Content   string    `json:"content"`
	Code      string    `json:"code,omitempty"` // assistant messages only
	CreatedAt time.Time `json:"created_at"`
}

// DeletedChat is the summary returned after a chat is removed
type DeletedChat struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Turn is one entry of model context built from chat history
type Turn struct {
	Role    string
	Content string
}

// CreateChatRequest is the request to create a chat
type CreateChatRequest struct {
	Title string `json:"title"`
}

// UpdateChatRequest is the request to rename a chat
type UpdateChatRequest struct {
	Title string `json:"title"`
}

// SaveMessageRequest is the request to append a message to a chat
type SaveMessageRequest struct {
	ChatID  int64  `json:"chatId"`
	Role    string `json:"role"`
	Content string `json:"content"`
	Code    string `json:"code"`
}

// SendRequest is the request to stream an assistant reply
type SendRequest struct {
	ChatID  int64  `json:"chat_id"`
	Message string `json:"message"`
	Model   string `json:"model"`
}

// Stream chunk types.
const (
	ChunkContent = "content"
	ChunkDone    = "done"
	ChunkError   = "error"
)

// StreamChunk represents a chunk in the assistant token stream
type StreamChunk struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	DBSaved bool   `json:"db_saved,omitempty"`
	HasCode bool   `json:"has_code,omitempty"`
}
