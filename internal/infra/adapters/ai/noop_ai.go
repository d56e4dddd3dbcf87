package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"langtest-practice/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers with a fixed JSON document. Used in dev mode when no
// provider key is configured.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "noop-ai").Logger()
	return &NoopAIAdapter{log: &l, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += EstimateTokens(m.Content)
	}
	return n, nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	a.log.Debug().Str("model", model).Int("messages", len(messages)).Msg("noop chat")

	reply := `{"title":"Practice task","instructions":"Write your answer.","scores":{"overall":7},"feedback":"Noop evaluation."}`
	if len(messages) > 0 && strings.Contains(strings.ToLower(messages[0].Content), "generate") {
		reply = `{"title":"Practice task","instructions":"Write your answer.","details":{}}`
	}
	in, _ := a.CountTokens(ctx, model, messages)
	out := EstimateTokens(reply)
	return reply, adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}, nil
}
