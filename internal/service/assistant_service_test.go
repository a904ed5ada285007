package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tanmayk/relaychat/internal/domain"
	"github.com/tanmayk/relaychat/internal/repository"
)

const testSchema = `
CREATE TABLE chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL DEFAULT 'New Chat',
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL REFERENCES chats(id),
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content TEXT NOT NULL,
	code TEXT,
	created_at TIMESTAMP NOT NULL
);
`

func newTestDB(t *testing.T) *repository.DB {
	t.Helper()

	raw, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	_, err = raw.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	_, err = raw.Exec(testSchema)
	require.NoError(t, err)

	return &repository.DB{DB: raw}
}

// fakeStreamer replays scripted chunks and records what it was asked for.
type fakeStreamer struct {
	chunks   []domain.StreamChunk
	gotModel string
	gotTurns []domain.Turn
}

func (f *fakeStreamer) Stream(ctx context.Context, model string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	f.gotModel = model
	f.gotTurns = turns

	ch := make(chan domain.StreamChunk, len(f.chunks))
	for _, chunk := range f.chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func newSendFixture(t *testing.T, streamer TokenStreamer) (*AssistantService, *repository.MessageRepository, int64) {
	t.Helper()
	db := newTestDB(t)
	chatRepo := repository.NewChatRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	chat, err := chatRepo.Create(context.Background(), "test")
	require.NoError(t, err)

	svc := NewAssistantService(msgRepo, streamer, zap.NewNop())
	return svc, msgRepo, chat.ID
}

func collect(t *testing.T, stream <-chan domain.StreamChunk) []domain.StreamChunk {
	t.Helper()
	var chunks []domain.StreamChunk
	for chunk := range stream {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestSendRelaysFragmentsAndPersistsReply(t *testing.T) {
	streamer := &fakeStreamer{chunks: []domain.StreamChunk{
		{Type: domain.ChunkContent, Content: "Hel"},
		{Type: domain.ChunkContent, Content: "lo"},
		{Type: domain.ChunkDone},
	}}
	svc, msgRepo, chatID := newSendFixture(t, streamer)
	ctx := context.Background()

	stream, err := svc.Send(ctx, &domain.SendRequest{ChatID: chatID, Message: "hi"})
	require.NoError(t, err)

	chunks := collect(t, stream)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.Equal(t, domain.ChunkDone, chunks[2].Type)
	assert.True(t, chunks[2].DBSaved)
	assert.False(t, chunks[2].HasCode)

	messages, err := msgRepo.ListByChat(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Hello", messages[1].Content)
}

func TestSendUserMessageCommittedBeforeModelCall(t *testing.T) {
	streamer := &fakeStreamer{chunks: []domain.StreamChunk{{Type: domain.ChunkDone}}}
	svc, _, chatID := newSendFixture(t, streamer)

	stream, err := svc.Send(context.Background(), &domain.SendRequest{ChatID: chatID, Message: "first turn"})
	require.NoError(t, err)
	collect(t, stream)

	// The streamer saw the user turn, so the commit preceded the call.
	require.NotEmpty(t, streamer.gotTurns)
	last := streamer.gotTurns[len(streamer.gotTurns)-1]
	assert.Equal(t, domain.RoleUser, last.Role)
	assert.Equal(t, "first turn", last.Content)
}

func TestSendBackendFailureDiscardsPartialReply(t *testing.T) {
	streamer := &fakeStreamer{chunks: []domain.StreamChunk{
		{Type: domain.ChunkContent, Content: "partial"},
		{Type: domain.ChunkError, Content: "backend died"},
	}}
	svc, msgRepo, chatID := newSendFixture(t, streamer)
	ctx := context.Background()

	stream, err := svc.Send(ctx, &domain.SendRequest{ChatID: chatID, Message: "hi"})
	require.NoError(t, err)

	chunks := collect(t, stream)
	require.Len(t, chunks, 1)
	assert.Equal(t, "partial", chunks[0].Content)

	// Partial reply discarded; the user turn stays in the log.
	messages, err := msgRepo.ListByChat(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
}

func TestSendBackendUnreachablePersistsNoReply(t *testing.T) {
	streamer := &fakeStreamer{chunks: []domain.StreamChunk{
		{Type: domain.ChunkError, Content: "connection refused"},
	}}
	svc, msgRepo, chatID := newSendFixture(t, streamer)
	ctx := context.Background()

	stream, err := svc.Send(ctx, &domain.SendRequest{ChatID: chatID, Message: "hi"})
	require.NoError(t, err)
	assert.Empty(t, collect(t, stream))

	messages, err := msgRepo.ListByChat(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
}

func TestSendExtractsCodeBlock(t *testing.T) {
	streamer := &fakeStreamer{chunks: []domain.StreamChunk{
		{Type: domain.ChunkContent, Content: "Use this:\n```go\nfmt.Println(1)\n```"},
		{Type: domain.ChunkDone},
	}}
	svc, msgRepo, chatID := newSendFixture(t, streamer)
	ctx := context.Background()

	stream, err := svc.Send(ctx, &domain.SendRequest{ChatID: chatID, Message: "print something"})
	require.NoError(t, err)

	chunks := collect(t, stream)
	done := chunks[len(chunks)-1]
	assert.True(t, done.DBSaved)
	assert.True(t, done.HasCode)

	messages, err := msgRepo.ListByChat(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Use this:", messages[1].Content)
	assert.Equal(t, "fmt.Println(1)", messages[1].Code)
}

func TestSendValidation(t *testing.T) {
	streamer := &fakeStreamer{}
	svc, _, chatID := newSendFixture(t, streamer)
	ctx := context.Background()

	_, err := svc.Send(ctx, &domain.SendRequest{ChatID: chatID, Message: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Send(ctx, &domain.SendRequest{ChatID: 0, Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSendMissingChatWritesNothing(t *testing.T) {
	streamer := &fakeStreamer{}
	svc, msgRepo, _ := newSendFixture(t, streamer)
	ctx := context.Background()

	_, err := svc.Send(ctx, &domain.SendRequest{ChatID: 999, Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	messages, err := msgRepo.ListByChat(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSendModelPassedThrough(t *testing.T) {
	streamer := &fakeStreamer{chunks: []domain.StreamChunk{{Type: domain.ChunkDone}}}
	svc, _, chatID := newSendFixture(t, streamer)

	stream, err := svc.Send(context.Background(),
		&domain.SendRequest{ChatID: chatID, Message: "hi", Model: "llama3"})
	require.NoError(t, err)
	collect(t, stream)

	assert.Equal(t, "llama3", streamer.gotModel)
}

func TestToTurnsCapsHistory(t *testing.T) {
	history := make([]*domain.Message, 0, historyLimit+5)
	for i := 0; i < historyLimit+5; i++ {
		history = append(history, &domain.Message{Role: domain.RoleUser, Content: "m"})
	}

	turns := toTurns(history)
	assert.Len(t, turns, historyLimit)
}
