// Package llmclient implements the LLM client (C5): chat completion with
// system+user prompts, with optional token streaming.
package llmclient

import "context"

// Message is one turn of a chat completion request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// StreamHandler receives incremental tokens from ChatStream.
type StreamHandler interface {
	OnDelta(content string)
}

// Provider is the chat-completion abstraction every backend implements.
type Provider interface {
	Chat(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens *int) (string, error)
	ChatStream(ctx context.Context, msgs []Message, model string, temperature float64, maxTokens *int, h StreamHandler) error
	Ping(ctx context.Context) error
	Name() string
}
