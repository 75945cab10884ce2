// Package llm provides the language-model client abstraction shared by the
// conversation engine and the text-to-SQL fallback. Providers are swappable;
// callers only see Complete.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to or received from a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request describes a completion call.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Response is the provider-agnostic completion result.
type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Client is implemented by every LLM provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
