// Package completion talks to the OpenAI-compatible text-completion backend.
package completion

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/askzen/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultMaxConcurrent = 8
)

// Config holds the gateway configuration.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

// Request is one outbound completion call.
type Request struct {
	SystemPrompt string
	Messages     []domain.HistoryEntry
	MaxTokens    int
	Temperature  float32
}

// Gateway issues completion requests over a single shared HTTP client.
// It makes exactly one attempt per call.
type Gateway struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// NewGateway creates a gateway. A nil logger uses slog.Default().
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Gateway{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  logger,
	}
}

// Complete sends req and returns the first choice's content. Any error is a
// *BackendError. Time spent waiting for a free slot counts against the
// client timeout.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", &BackendError{Kind: TransportFailure, Err: err}
	}
	defer g.sem.Release(1)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		be := classify(err)
		g.logger.Warn("completion failed",
			"kind", be.Kind.String(),
			"duration", time.Since(start),
			"error", err,
		)
		return "", be
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{Kind: MalformedResponse, Err: errors.New("response has no choices")}
	}
	// go-openai decodes a missing message or content as "".
	if resp.Choices[0].Message.Content == "" {
		return "", &BackendError{Kind: MalformedResponse, Err: errors.New("first choice has no message content")}
	}

	g.logger.Debug("completion finished",
		"model", resp.Model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func toMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}
