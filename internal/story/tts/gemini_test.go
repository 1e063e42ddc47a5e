package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiEngineSynthesize(t *testing.T) {
	pcm := base64.StdEncoding.EncodeToString(make([]byte, 480))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-tts:generateContent"), r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		cfg := body["generationConfig"].(map[string]interface{})
		voice := cfg["speechConfig"].(map[string]interface{})["voiceConfig"].(map[string]interface{})["prebuiltVoiceConfig"].(map[string]interface{})
		assert.Equal(t, "Zephyr", voice["voiceName"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` + pcm + `"}}]}}]}`))
	}))
	defer srv.Close()

	engine, err := newGeminiEngine(Config{APIKey: "secret", Model: "test-tts", BaseURL: srv.URL})
	require.NoError(t, err)

	asset, err := engine.Synthesize(context.Background(), "Сказка", "Zephyr")
	require.NoError(t, err)
	assert.Equal(t, pcm, asset.Data)
}

func TestGeminiEngineErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadRequest, `{"error":{"code":400,"message":"bad voice","status":"INVALID_ARGUMENT"}}`},
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"no inline data", http.StatusOK, `{"candidates":[{"content":{"parts":[{}]}}]}`},
		{"not base64", http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"***"}}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			engine, err := newGeminiEngine(Config{APIKey: "secret", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = engine.Synthesize(context.Background(), "Сказка", "Kore")
			assert.Error(t, err)
		})
	}
}

func TestGeminiEngineRequiresKey(t *testing.T) {
	_, err := newGeminiEngine(Config{})
	assert.Error(t, err)
}
