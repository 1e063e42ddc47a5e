package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const openAIDefaultModel = openaigo.GPT4oMini

// OpenAIProvider serves OpenAI and any OpenAI-compatible endpoint
// (local Ollama, vLLM) through go-openai.
type OpenAIProvider struct {
	client       *openaigo.Client
	chatModel    string
	oneShotModel string
	temperature  float32
}

func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, errors.New("openai API key or base URL required")
	}
	clientCfg := openaigo.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = config.BaseURL
	}

	p := &OpenAIProvider{
		client:       openaigo.NewClientWithConfig(clientCfg),
		chatModel:    config.ChatModel,
		oneShotModel: config.OneShotModel,
		temperature:  float32(config.Temperature),
	}
	if p.chatModel == "" {
		p.chatModel = openAIDefaultModel
	}
	if p.oneShotModel == "" {
		p.oneShotModel = p.chatModel
	}
	return p, nil
}

func (p *OpenAIProvider) Open(ctx context.Context) (Channel, error) {
	return &openAIChannel{provider: p}, nil
}

func (p *OpenAIProvider) OneShot(ctx context.Context, text string) (string, error) {
	return p.complete(ctx, p.oneShotModel, []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleUser, Content: text},
	})
}

func (p *OpenAIProvider) complete(ctx context.Context, model string, messages []openaigo.ChatCompletionMessage) (reply string, err error) {
	start := time.Now()
	defer func() { observe(model, start, err) }()

	resp, err := p.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty response from model")
	}

	logrus.WithFields(logrus.Fields{
		"model":             model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Chat completion received")
	return resp.Choices[0].Message.Content, nil
}

type openAIChannel struct {
	provider *OpenAIProvider

	mu       sync.Mutex
	messages []openaigo.ChatCompletionMessage
}

func (c *openAIChannel) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := append(append([]openaigo.ChatCompletionMessage(nil), c.messages...),
		openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: text})

	reply, err := c.provider.complete(ctx, c.provider.chatModel, messages)
	if err != nil {
		return "", err
	}
	c.messages = append(messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}
