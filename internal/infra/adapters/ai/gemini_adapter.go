// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"langtest-practice/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter talks to the Gemini API. It is the only adapter that accepts
// inline audio, so speaking evaluations are routed here.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) Provider() string { return "gemini" }

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	_, contents := toGenAIContents(messages)
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(model, g.defaultModel), contents, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no messages")
	}
	system, contents := toGenAIContents(messages)
	if len(contents) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no user content")
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens:  int32(g.maxOut),
		ResponseMIMEType: "application/json",
	}
	if system != nil {
		cfg.SystemInstruction = system
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelOrDefault(model, g.defaultModel), contents, cfg)
	if err != nil {
		return "", adapter.Usage{}, err
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil && p.Text != "" {
				sb.WriteString(p.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", adapter.Usage{}, errors.New("gemini: empty response")
	}

	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return sb.String(), u, nil
}

// toGenAIContents splits system messages into a system instruction and maps the
// rest, with any inline media, to Gemini contents.
func toGenAIContents(msgs []adapter.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if strings.ToLower(m.Role) == "system" {
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
			continue
		}
		role := genai.RoleUser
		if r := strings.ToLower(m.Role); r == "assistant" || r == "model" {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, 1+len(m.Media))
		if m.Content != "" {
			parts = append(parts, &genai.Part{Text: m.Content})
		}
		for _, md := range m.Media {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: md.Data, MIMEType: md.MIMEType}})
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return system, out
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
