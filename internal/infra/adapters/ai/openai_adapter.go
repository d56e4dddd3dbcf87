package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"langtest-practice/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// ErrMediaUnsupported is returned when a message carries audio; chat
// completions here are text-only.
var ErrMediaUnsupported = errors.New("openai: inline media not supported")

// OpenAIAdapter implements adapter.AIServiceAdapter with the Chat Completions API.
// baseURL may point at any OpenAI-compatible gateway.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	maxOut int
	tokens *TokenCounter
}

func NewOpenAIAdapter(apiKey, baseURL, model string, maxOut int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		maxOut: maxOut,
		tokens: NewTokenCounter(),
	}, nil
}

func (o *OpenAIAdapter) Provider() string { return "openai" }

func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return o.tokens.CountMessages(modelOrDefault(model, o.model), messages), nil
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	params, err := o.buildParams(modelOrDefault(model, o.model), messages)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	u := adapter.Usage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
	}
	for _, c := range completion.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New("openai: no choice content")
}

func (o *OpenAIAdapter) buildParams(model string, messages []adapter.Message) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		if len(m.Media) > 0 {
			return openai.ChatCompletionNewParams{}, ErrMediaUnsupported
		}
		switch strings.ToLower(m.Role) {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant", "model":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	if len(msgs) == 0 {
		return openai.ChatCompletionNewParams{}, errors.New("openai: no messages")
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}
	return params, nil
}
