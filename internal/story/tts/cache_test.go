package tts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEngineReusesNarration(t *testing.T) {
	mock := NewMockTTSEngine(Config{})
	cached, err := NewCachedEngine(mock, "mock", t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cached.Synthesize(ctx, "Жили-были дед да баба", "Kore")
	require.NoError(t, err)
	second, err := cached.Synthesize(ctx, "Жили-были дед да баба", "Kore")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.Calls())

	_, err = cached.Synthesize(ctx, "Жили-были дед да баба", "Puck")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls(), "voice is part of the cache key")

	stats, err := cached.GetCacheStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats["cached_files"])

	require.NoError(t, cached.ClearCache())
	stats, err = cached.GetCacheStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats["cached_files"])
}

func TestCachedEngineDoesNotCacheFailures(t *testing.T) {
	mock := NewMockTTSEngine(Config{})
	mock.FailWith(assert.AnError)
	cached, err := NewCachedEngine(mock, "mock", t.TempDir())
	require.NoError(t, err)

	_, err = cached.Synthesize(context.Background(), "Сказка", "Kore")
	assert.ErrorIs(t, err, assert.AnError)

	mock.FailWith(nil)
	asset, err := cached.Synthesize(context.Background(), "Сказка", "Kore")
	require.NoError(t, err)
	assert.False(t, asset.IsEmpty())
	assert.Equal(t, 2, mock.Calls())
}

func TestCachedEngineKeyedByEngine(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	espeak := NewMockTTSEngine(Config{})
	cachedESpeak, err := NewCachedEngine(espeak, "espeak", dir)
	require.NoError(t, err)
	_, err = cachedESpeak.Synthesize(ctx, "Сказка", "Kore")
	require.NoError(t, err)

	gemini := NewMockTTSEngine(Config{})
	cachedGemini, err := NewCachedEngine(gemini, "gemini/gemini-2.5-flash-preview-tts", dir)
	require.NoError(t, err)
	_, err = cachedGemini.Synthesize(ctx, "Сказка", "Kore")
	require.NoError(t, err)

	assert.Equal(t, 1, gemini.Calls(), "another engine's narration is not reused")

	_, err = cachedESpeak.Synthesize(ctx, "Сказка", "Kore")
	require.NoError(t, err)
	assert.Equal(t, 1, espeak.Calls())
}

func TestCacheName(t *testing.T) {
	assert.Equal(t, "espeak", cacheName(Config{Type: "espeak"}))
	assert.Equal(t, "gemini/tts-model", cacheName(Config{Type: "gemini", Model: "tts-model"}))
}
