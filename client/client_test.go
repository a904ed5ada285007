package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAndCreateChats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/chats":
			assert.Equal(t, "go", r.URL.Query().Get("q"))
			json.NewEncoder(w).Encode([]Chat{{ID: 1, Title: "Go talk", CreatedAt: time.Now()}})

		case r.Method == http.MethodPost && r.URL.Path == "/api/chats":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Chat{ID: 2, Title: body["title"]})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	chats, err := c.ListChats(ctx, "go", 0, 0)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Go talk", chats[0].Title)

	chat, err := c.CreateChat(ctx, "Fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(2), chat.ID)
	assert.Equal(t, "Fresh", chat.Title)
}

func TestSendMessageCarriesCodePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chats/messages/send", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 1, body["chatId"])
		assert.Equal(t, "assistant", body["role"])
		assert.Equal(t, "fmt.Println(1)", body["code"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{
			ID: 7, ChatID: 1, Role: "assistant",
			Content: "Use this:", Code: "fmt.Println(1)",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	msg, err := c.SendMessage(context.Background(), 1, "assistant", "Use this:", "fmt.Println(1)")
	require.NoError(t, err)
	assert.Equal(t, "fmt.Println(1)", msg.Code)

	// A plain user message omits the code key entirely.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasCode := body["code"]
		assert.False(t, hasCode)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{ID: 8, ChatID: 1, Role: "user", Content: "hi"})
	}))
	defer srv2.Close()

	_, err = New(srv2.URL).SendMessage(context.Background(), 1, "user", "hi", "")
	require.NoError(t, err)
}

func TestAPIErrorSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Chat not found"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.RenameChat(context.Background(), 99, "Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Chat not found")
}

func TestStreamParsesFragmentsAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bot/send", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 1, req["chat_id"])

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range []string{
			`{"content": "Hel"}`,
			`{"content": "lo"}`,
			`{"content": "[DONE]", "db_saved": true, "has_code": false}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	stream, err := c.Stream(context.Background(), 1, "hi", "")
	require.NoError(t, err)

	var fragments []Fragment
	for fragment := range stream {
		fragments = append(fragments, fragment)
	}

	require.Len(t, fragments, 3)
	assert.Equal(t, "Hel", fragments[0].Content)
	assert.Equal(t, "lo", fragments[1].Content)
	assert.True(t, fragments[2].Done)
	assert.True(t, fragments[2].DBSaved)
	assert.False(t, fragments[2].HasCode)
}

func TestStreamErrorStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "message and chat_id required"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Stream(context.Background(), 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message and chat_id required")
}

func TestStreamDropsMidwayWithoutDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\": \"par\"}\n\n")
		// Server closes without a [DONE] frame.
	}))
	defer srv.Close()

	c := New(srv.URL)
	stream, err := c.Stream(context.Background(), 1, "hi", "")
	require.NoError(t, err)

	var fragments []Fragment
	for fragment := range stream {
		fragments = append(fragments, fragment)
	}

	require.Len(t, fragments, 1)
	assert.Equal(t, "par", fragments[0].Content)
	assert.False(t, fragments[0].Done)
}
