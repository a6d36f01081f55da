package llm

import "context"

// Provider completes a chat exchange and returns the assistant text.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config selects and configures a provider backend.
type Config struct {
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}
