package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fairytales/internal/domain/story"

	"google.golang.org/genai"
)

const geminiTTSModel = "gemini-2.5-flash-preview-tts"

// GeminiEngine synthesizes speech with the Gemini TTS model, which answers
// with 24 kHz PCM that already matches Format.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

func newGeminiEngine(config Config) (*GeminiEngine, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini API key required")
	}
	model := config.Model
	if model == "" {
		model = geminiTTSModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = config.BaseURL
	}
	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEngine{client: client, model: model}, nil
}

func (g *GeminiEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	if voice == "" {
		voice = story.DefaultVoice
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), config)
	if err != nil {
		return story.AudioAsset{}, fmt.Errorf("speech request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return story.AudioAsset{}, errors.New("no audio data received from API")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return story.AudioAsset{Data: base64.StdEncoding.EncodeToString(part.InlineData.Data)}, nil
		}
	}
	return story.AudioAsset{}, errors.New("no audio data received from API")
}

func (g *GeminiEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	voices := make([]string, 0, len(story.Voices))
	for _, v := range story.Voices {
		voices = append(voices, v.ID)
	}
	return voices, nil
}
