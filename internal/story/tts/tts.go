// internal/story/tts/tts.go
package tts

import (
	"context"

	"fairytales/internal/domain/story"
)

type Config struct {
	Type         string
	Speed        float64
	Volume       float64
	Voice        string
	LanguageCode string
	APIKey       string
	Model        string
	BaseURL      string
	CachePath    string
}

// Engine produces narration audio in the fixed PCM format.
type Engine interface {
	Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error)
	GetAvailableVoices(ctx context.Context) ([]string, error)
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	GetCacheStats() (map[string]interface{}, error)
	ClearCache() error
}
