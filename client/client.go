// Package client is a Go SDK for the relaychat API: typed registry calls
// plus an SSE consumer for streamed assistant replies.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tanmayk/relaychat/internal/domain"
)

// doneMarker terminates the SSE stream.
const doneMarker = "[DONE]"

// Client is a relaychat API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL, e.g. "http://localhost:5000"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat mirrors the server chat resource
type Chat = domain.Chat

// Message mirrors the server message resource
type Message = domain.Message

// Fragment is one unit of a streamed assistant reply
type Fragment struct {
	Content string
	Done    bool
	DBSaved bool
	HasCode bool
	Err     error
}

// ListChats returns chats filtered by an optional title substring
func (c *Client) ListChats(ctx context.Context, q string, limit, offset int) ([]Chat, error) {
	params := url.Values{}
	if q != "" {
		params.Set("q", q)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/chats"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var chats []Chat
	if err := c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateChat creates a chat; an empty title gets the server default
func (c *Client) CreateChat(ctx context.Context, title string) (*Chat, error) {
	chat := &Chat{}
	err := c.doJSON(ctx, http.MethodPost, "/api/chats",
		map[string]string{"title": title}, http.StatusCreated, chat)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// RenameChat updates a chat title
func (c *Client) RenameChat(ctx context.Context, chatID int64, title string) (*Chat, error) {
	chat := &Chat{}
	err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/chats/%d", chatID),
		map[string]string{"title": title}, http.StatusOK, chat)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteChat removes a chat and its messages
func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/chats/%d", chatID),
		nil, http.StatusOK, nil)
}

// ListMessages returns a chat's messages in creation order
func (c *Client) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	var messages []Message
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/chats/messages/%d", chatID),
		nil, http.StatusOK, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage appends a message without involving the assistant. The code
// payload is optional and only stored for assistant messages.
func (c *Client) SendMessage(ctx context.Context, chatID int64, role, content, code string) (*Message, error) {
	body := map[string]any{"chatId": chatID, "role": role, "content": content}
	if code != "" {
		body["code"] = code
	}

	message := &Message{}
	err := c.doJSON(ctx, http.MethodPost, "/api/chats/messages/send",
		body, http.StatusCreated, message)
	if err != nil {
		return nil, err
	}
	return message, nil
}

// Stream sends a user message and returns the assistant reply as a channel
// of fragments. The channel closes after a Done fragment, an Err fragment,
// or when the server drops the stream.
func (c *Client) Stream(ctx context.Context, chatID int64, message, model string) (<-chan Fragment, error) {
	body, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"message": message,
		"model":   model,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/bot/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	ch := make(chan Fragment, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var frame struct {
				Content string `json:"content"`
				DBSaved bool   `json:"db_saved"`
				HasCode bool   `json:"has_code"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				continue
			}

			if frame.Content == doneMarker {
				ch <- Fragment{Done: true, DBSaved: frame.DBSaved, HasCode: frame.HasCode}
				return
			}
			select {
			case ch <- Fragment{Content: frame.Content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			ch <- Fragment{Err: err}
		}
	}()

	return ch, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
