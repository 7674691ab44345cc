// Package llm wraps the Anthropic Messages API behind a small Caller
// interface with retry, backoff and response cleanup helpers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/metrics"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1024
	maxAttempts      = 3
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("llm: ANTHROPIC_API_KEY not configured")

// Request is a single-turn completion.
type Request struct {
	// Operation labels metrics and logs, e.g. "summarize".
	Operation   string
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Caller produces text completions.
type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Messager is the subset of the Anthropic client used here.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

type AnthropicCaller struct {
	messages  Messager
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewAnthropicCaller builds a caller from cfg, or returns ErrDisabled when
// the API key is empty.
func NewAnthropicCaller(cfg Config, logger zerolog.Logger) (*AnthropicCaller, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrDisabled
	}
	// Retries are handled by Complete so they show up in metrics.
	client := anthropic.NewClient(option.WithAPIKey(key), option.WithMaxRetries(0))
	return NewAnthropicCallerWithMessager(&client.Messages, cfg, logger), nil
}

// NewAnthropicCallerWithMessager is NewAnthropicCaller with an injected
// client.
func NewAnthropicCallerWithMessager(m Messager, cfg Config, logger zerolog.Logger) *AnthropicCaller {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicCaller{
		messages:  m,
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		logger:    logger.With().Str("component", "llm").Logger(),
		sleep:     sleepCtx,
	}
}

func (a *AnthropicCaller) Model() string { return a.model }

// Complete sends req and returns the concatenated text blocks. Timeouts,
// 429s and 5xx responses are retried with backoff; other failures return
// immediately.
func (a *AnthropicCaller) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		text, err := a.once(ctx, params)
		metrics.RecordLLMCall(req.Operation, err, time.Since(start))
		if err == nil {
			a.logger.Debug().
				Str("operation", req.Operation).
				Int("attempt", attempt).
				Dur("elapsed", time.Since(start)).
				Int("response_chars", len(text)).
				Msg("llm completion")
			return text, nil
		}
		lastErr = err

		class := classifyTransportError(err)
		a.logger.Warn().Err(err).
			Str("operation", req.Operation).
			Int("attempt", attempt).
			Str("class", class.String()).
			Msg("llm completion failed")

		if !class.retryable() || attempt == maxAttempts {
			break
		}
		if err := a.sleep(ctx, backoffDelay(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm %s: %w", req.Operation, lastErr)
}

func (a *AnthropicCaller) once(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}
