// Package llm abstracts the generative model behind answer synthesis. The
// client is optional; without one the service answers extractively.
package llm

import (
	"context"
	"fmt"

	"opskb/internal/config"
)

// Message is one turn of conversation handed to the model.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client generates a completion for a conversation.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// New builds the configured generative client. An empty provider returns
// (nil, nil): generation is disabled, not broken.
func New(cfg *config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL)
	case "openai":
		return NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
