package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/domain"
	"github.com/tanmayk/relaychat/internal/llm"
	"github.com/tanmayk/relaychat/internal/repository"
)

// historyLimit caps how many prior turns are replayed as model context.
const historyLimit = 10

// persistTimeout bounds the assistant-message write after the stream ends.
const persistTimeout = 5 * time.Second

// TokenStreamer produces a fragment stream for a conversation
type TokenStreamer interface {
	Stream(ctx context.Context, model string, turns []domain.Turn) (<-chan domain.StreamChunk, error)
}

// Request phases, one instance per send.
type phase string

const (
	phaseIngesting phase = "ingesting"
	phaseStreaming phase = "streaming"
	phaseCompleted phase = "completed"
	phaseAborted   phase = "aborted"
)

// AssistantService is the two-phase bridge between a user message and a
// streamed assistant reply: the user turn is committed to storage before the
// inference backend is contacted, then fragments are relayed and the
// accumulated reply persisted on clean completion.
type AssistantService struct {
	messages *repository.MessageRepository
	streamer TokenStreamer
	logger   *zap.Logger
}

// NewAssistantService creates a new assistant service
func NewAssistantService(
	messages *repository.MessageRepository,
	streamer TokenStreamer,
	logger *zap.Logger,
) *AssistantService {
	return &AssistantService{
		messages: messages,
		streamer: streamer,
		logger:   logger,
	}
}

// Send validates the request, durably appends the user message, then opens a
// streaming session with the inference backend. The returned channel carries
// content fragments followed by a terminal done or error chunk. An error
// return means the stream never began and a plain HTTP error is still
// possible.
func (s *AssistantService) Send(ctx context.Context, req *domain.SendRequest) (<-chan domain.StreamChunk, error) {
	if req.ChatID <= 0 || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message and chat_id required: %w", domain.ErrInvalidRequest)
	}

	s.logPhase(req.ChatID, phaseIngesting)

	// The user turn must be committed before the model is contacted so the
	// conversation log stays truthful even if inference fails.
	userMsg, err := s.messages.Append(ctx, req.ChatID, domain.RoleUser, req.Message, "")
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListByChat(ctx, req.ChatID)
	if err != nil {
		s.logger.Warn("failed to load chat history", zap.Int64("chat_id", req.ChatID), zap.Error(err))
		history = []*domain.Message{userMsg}
	}

	in, err := s.streamer.Stream(ctx, req.Model, toTurns(history))
	if err != nil {
		return nil, fmt.Errorf("opening inference stream: %v: %w", err, domain.ErrUnavailable)
	}

	s.logPhase(req.ChatID, phaseStreaming)

	out := make(chan domain.StreamChunk, 16)
	go s.relay(ctx, req.ChatID, in, out)
	return out, nil
}

// relay is the single consumer of the backend stream. It forwards fragments
// to the transport, accumulates the full reply, and persists it once the
// backend reports completion. Partial output from a failed stream is
// discarded, not persisted.
func (s *AssistantService) relay(ctx context.Context, chatID int64, in <-chan domain.StreamChunk, out chan<- domain.StreamChunk) {
	defer close(out)

	var reply strings.Builder
	for chunk := range in {
		switch chunk.Type {
		case domain.ChunkContent:
			reply.WriteString(chunk.Content)
			select {
			case out <- chunk:
			case <-ctx.Done():
				s.logPhase(chatID, phaseAborted)
				return
			}

		case domain.ChunkError:
			s.logger.Warn("stream aborted, discarding partial reply",
				zap.Int64("chat_id", chatID),
				zap.Int("partial_len", reply.Len()),
			)
			s.logPhase(chatID, phaseAborted)
			return

		case domain.ChunkDone:
			done := s.finish(chatID, reply.String())
			select {
			case out <- done:
			case <-ctx.Done():
			}
			s.logPhase(chatID, phaseCompleted)
			return
		}
	}

	// Backend closed the stream without a terminal chunk; treat as abort.
	s.logPhase(chatID, phaseAborted)
}

// finish persists the accumulated reply and builds the terminal chunk.
// Persistence runs on a detached context: a client that disconnected after
// the last fragment does not lose a completed reply.
func (s *AssistantService) finish(chatID int64, text string) domain.StreamChunk {
	done := domain.StreamChunk{Type: domain.ChunkDone}
	if strings.TrimSpace(text) == "" {
		return done
	}

	content, code := llm.SplitCodeBlock(text)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := s.messages.Append(ctx, chatID, domain.RoleAssistant, content, code); err != nil {
		s.logger.Error("failed to persist assistant reply",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return done
	}

	done.DBSaved = true
	done.HasCode = code != ""
	return done
}

func (s *AssistantService) logPhase(chatID int64, p phase) {
	s.logger.Debug("send pipeline", zap.Int64("chat_id", chatID), zap.String("phase", string(p)))
}

func toTurns(history []*domain.Message) []domain.Turn {
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	turns := make([]domain.Turn, 0, len(history))
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		turns = append(turns, domain.Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}
