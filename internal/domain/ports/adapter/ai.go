package adapter

import "context"

// Media is an inline binary attachment (e.g. a recorded speaking answer).
type Media struct {
	MIMEType string
	Data     []byte
}

// Message represents a chat message.
type Message struct {
	Role    string  `json:"role"` // "user", "assistant", "system"
	Content string  `json:"content"`
	Media   []Media `json:"-"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for the generative model used to write and score tasks.
type AIServiceAdapter interface {
	// Provider names the backend for logs and metrics ("gemini", "openai", ...).
	Provider() string

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when the provider has no exact counter).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}
