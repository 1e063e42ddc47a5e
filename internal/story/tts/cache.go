package tts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fairytales/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// CachedEngine keeps synthesized narration on disk so that replaying a saved
// story, or retrying a turn, does not pay for the same speech twice.
type CachedEngine struct {
	engine   Engine
	name     string
	cacheDir string
}

// NewCachedEngine wraps engine. name identifies the engine (type and model)
// so narration from another engine in the same directory is never reused.
func NewCachedEngine(engine Engine, name, cacheDir string) (*CachedEngine, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &CachedEngine{engine: engine, name: name, cacheDir: cacheDir}, nil
}

// generateCacheKey creates a unique cache key based on engine, text and voice
func (c *CachedEngine) generateCacheKey(text, voice string) string {
	hasher := md5.New()
	hasher.Write([]byte(fmt.Sprintf("%s|%s|%s", c.name, text, voice)))
	return hex.EncodeToString(hasher.Sum(nil))
}

func (c *CachedEngine) cacheFile(key string) string {
	return filepath.Join(c.cacheDir, key+".pcm")
}

func (c *CachedEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	key := c.generateCacheKey(text, voice)
	path := c.cacheFile(key)

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		logrus.WithField("key", key).Debug("Using cached narration")
		return story.AudioAsset{Data: string(data)}, nil
	}

	asset, err := c.engine.Synthesize(ctx, text, voice)
	if err != nil {
		return story.AudioAsset{}, err
	}

	if !asset.IsEmpty() {
		if err := os.WriteFile(path, []byte(asset.Data), 0644); err != nil {
			logrus.WithError(err).Warn("Failed to save narration to cache")
		}
	}
	return asset, nil
}

func (c *CachedEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	return c.engine.GetAvailableVoices(ctx)
}

// GetCacheStats returns statistics about the audio cache
func (c *CachedEngine) GetCacheStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	files, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var totalSize int64
	var fileCount int

	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".pcm") {
			fileCount++
			if info, err := file.Info(); err == nil {
				totalSize += info.Size()
			}
		}
	}

	stats["cache_directory"] = c.cacheDir
	stats["cached_files"] = fileCount
	stats["total_size_bytes"] = totalSize
	stats["total_size_mb"] = float64(totalSize) / (1024 * 1024)

	return stats, nil
}

// ClearCache removes all cached audio files
func (c *CachedEngine) ClearCache() error {
	files, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".pcm") {
			if err := os.Remove(filepath.Join(c.cacheDir, file.Name())); err != nil {
				return fmt.Errorf("failed to remove cache file %s: %w", file.Name(), err)
			}
		}
	}

	logrus.WithField("directory", c.cacheDir).Info("Narration cache cleared")
	return nil
}

// Close releases the wrapped engine when it holds a client.
func (c *CachedEngine) Close() error {
	if closer, ok := c.engine.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
