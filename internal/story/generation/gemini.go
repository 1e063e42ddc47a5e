package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	geminiChatModel    = "gemini-2.5-pro"
	geminiOneShotModel = "gemini-2.5-flash"
)

// GeminiProvider talks to Gemini through the genai client. Interactive
// stories use a genai chat, which keeps the conversation history.
type GeminiProvider struct {
	client       *genai.Client
	chatModel    string
	oneShotModel string
	config       *genai.GenerateContentConfig
}

func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini API key required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 180 * time.Second},
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = config.BaseURL
	}
	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	p := &GeminiProvider{
		client:       client,
		chatModel:    config.ChatModel,
		oneShotModel: config.OneShotModel,
	}
	if p.chatModel == "" {
		p.chatModel = geminiChatModel
	}
	if p.oneShotModel == "" {
		p.oneShotModel = geminiOneShotModel
	}
	if config.Temperature > 0 {
		p.config = &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(config.Temperature))}
	}
	return p, nil
}

func (p *GeminiProvider) Open(ctx context.Context) (Channel, error) {
	chat, err := p.client.Chats.Create(ctx, p.chatModel, p.config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open gemini chat: %w", err)
	}
	return &geminiChannel{model: p.chatModel, chat: chat}, nil
}

func (p *GeminiProvider) OneShot(ctx context.Context, text string) (reply string, err error) {
	start := time.Now()
	defer func() { observe(p.oneShotModel, start, err) }()

	resp, err := p.client.Models.GenerateContent(ctx, p.oneShotModel, genai.Text(text), p.config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return replyText(p.oneShotModel, start, resp)
}

func replyText(model string, start time.Time, resp *genai.GenerateContentResponse) (string, error) {
	text := resp.Text()
	if text == "" {
		return "", errors.New("no text in gemini response")
	}
	logrus.WithFields(logrus.Fields{
		"model":    model,
		"chars":    len(text),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Gemini reply received")
	return text, nil
}

// geminiChannel serializes sends on one chat. The chat records a turn only
// when the model answered, so a failed send can be repeated.
type geminiChannel struct {
	model string

	mu   sync.Mutex
	chat *genai.Chat
}

func (c *geminiChannel) Send(ctx context.Context, text string) (reply string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	defer func() { observe(c.model, start, err) }()

	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return replyText(c.model, start, resp)
}
