// Package generation talks to the text model that writes the story.
package generation

import (
	"context"
	"fmt"
	"strings"
)

// Channel is a stateful conversation with the model. Each Send sees every
// earlier message sent on the same channel.
type Channel interface {
	Send(ctx context.Context, text string) (string, error)
}

// Provider opens conversations and answers one-off prompts.
type Provider interface {
	Open(ctx context.Context) (Channel, error)
	OneShot(ctx context.Context, text string) (string, error)
}

type ProviderType string

const (
	ProviderTypeGemini ProviderType = "gemini"
	ProviderTypeOpenAI ProviderType = "openai"
	ProviderTypeMock   ProviderType = "mock"
)

type Config struct {
	Type string
	// APIKey is the provider's key; the mock provider needs none.
	APIKey string
	// ChatModel serves interactive stories, OneShotModel simple ones.
	ChatModel    string
	OneShotModel string
	BaseURL      string
	Temperature  float64
}

// NewProvider creates a provider based on the config type.
func NewProvider(config Config) (Provider, error) {
	switch ProviderType(strings.ToLower(config.Type)) {
	case ProviderTypeGemini:
		return NewGeminiProvider(config)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(config)
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", config.Type)
	}
}
