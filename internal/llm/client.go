// Package llm wraps the Ollama inference backend behind a fragment stream.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/tanmayk/relaychat/internal/config"
	"github.com/tanmayk/relaychat/internal/domain"
)

// Client streams chat completions from a local Ollama server
type Client struct {
	llm          *ollama.LLM
	defaultModel string
	logger       *zap.Logger
}

// New creates a new Ollama client
func New(cfg *config.OllamaConfig, logger *zap.Logger) (*Client, error) {
	opts := []ollama.Option{
		ollama.WithServerURL(cfg.Host),
		ollama.WithModel(cfg.DefaultModel),
	}
	if cfg.Timeout > 0 {
		// Caps a whole streamed completion, including a backend that accepts
		// the request and then stalls mid-stream.
		opts = append(opts, ollama.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &Client{
		llm:          llm,
		defaultModel: cfg.DefaultModel,
		logger:       logger,
	}, nil
}

// Stream opens a streaming completion for the given conversation turns and
// returns a channel of fragments. The channel ends with a done chunk on
// normal completion or an error chunk when the backend fails; it is closed
// in either case. Cancelling ctx aborts the backend request.
func (c *Client) Stream(ctx context.Context, model string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]llms.MessageContent, 0, len(turns))
	for _, turn := range turns {
		role := llms.ChatMessageTypeHuman
		if turn.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}

	ch := make(chan domain.StreamChunk, 64)
	go func() {
		defer close(ch)

		_, err := c.llm.GenerateContent(ctx, messages,
			llms.WithModel(model),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				select {
				case ch <- domain.StreamChunk{Type: domain.ChunkContent, Content: string(chunk)}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			c.logger.Warn("inference stream failed",
				zap.String("model", model),
				zap.Error(err),
			)
			select {
			case ch <- domain.StreamChunk{Type: domain.ChunkError, Content: err.Error()}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case ch <- domain.StreamChunk{Type: domain.ChunkDone}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}
