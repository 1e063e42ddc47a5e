package tts

import (
	"context"
	"fmt"
	"strings"

	"fairytales/internal/domain/story"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// The API rejects inputs above 5000 bytes; Cyrillic runes take two bytes each.
const classicChunkLimit = 2400

type GoogleClassicTTSEngine struct {
	client       *texttospeech.Client
	languageCode string
	speed        float64
	volume       float64
}

func newGoogleClassicTTSEngine(ctx context.Context, config Config) (*GoogleClassicTTSEngine, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	languageCode := config.LanguageCode
	if languageCode == "" {
		languageCode = "ru-RU"
	}
	return &GoogleClassicTTSEngine{
		client:       client,
		languageCode: languageCode,
		speed:        config.Speed,
		volume:       config.Volume,
	}, nil
}

// voiceName maps a narrator id such as "Kore" onto the matching Chirp3 HD
// voice; full Cloud voice names pass through untouched.
func (g *GoogleClassicTTSEngine) voiceName(voice string) string {
	if voice == "" {
		voice = story.DefaultVoice
	}
	if strings.Contains(voice, "-") {
		return voice
	}
	return fmt.Sprintf("%s-Chirp3-HD-%s", g.languageCode, voice)
}

func (g *GoogleClassicTTSEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	name := g.voiceName(voice)

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
		SampleRateHertz: int32(Format.SampleRate),
	}
	// Chirp voices often don't support speakingRate/pitch/SSML, skip them
	if !strings.Contains(strings.ToLower(name), "chirp") {
		audioCfg.SpeakingRate = g.speed
		audioCfg.VolumeGainDb = g.volume
	}

	chunks := splitIntoChunks(text, classicChunkLimit)
	var pcm []byte
	for chunkIndex, chunk := range chunks {
		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: g.languageCode,
				Name:         name,
			},
			AudioConfig: audioCfg,
		}
		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return story.AudioAsset{}, fmt.Errorf("failed to synthesize chunk %d: %w", chunkIndex, err)
		}

		// LINEAR16 content carries a WAV header
		chunkPCM, err := DecodeWAV(resp.AudioContent)
		if err != nil {
			return story.AudioAsset{}, fmt.Errorf("chunk %d: %w", chunkIndex, err)
		}
		pcm = append(pcm, chunkPCM...)

		logrus.WithFields(logrus.Fields{
			"chunk": chunkIndex + 1,
			"total": len(chunks),
			"voice": name,
		}).Debug("Synthesized audio chunk")
	}

	return EncodeAsset(pcm), nil
}

func (g *GoogleClassicTTSEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.languageCode})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

func (g *GoogleClassicTTSEngine) Close() error {
	return g.client.Close()
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
