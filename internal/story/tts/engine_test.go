package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(Config{Type: "mock", CachePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &MockTTSEngine{}, engine)

	engine, err = NewEngine(Config{Type: "gemini", APIKey: "k", CachePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &CachedEngine{}, engine)

	_, err = NewEngine(Config{Type: "festival"})
	assert.Error(t, err)
}

func TestAutoPrefersGeminiWithKey(t *testing.T) {
	assert.Equal(t, EngineTypeGemini, getBestEngine(Config{APIKey: "k"}))
	assert.Contains(t, GetAvailableEngines(Config{APIKey: "k"}), EngineTypeGemini)
}

func TestSplitIntoChunks(t *testing.T) {
	text := "Первое предложение. Второе предложение. Третье."
	chunks := splitIntoChunks(text, 25)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 25)
	}
	assert.Equal(t, []string{"Коротко."}, splitIntoChunks("Коротко.", 25))
}

func TestParseESpeakVoices(t *testing.T) {
	out := "Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
		" 5  ru              --/M      Russian            zle/ru\n" +
		" 5  en              --/M      default            default\n"
	assert.Equal(t, []string{"Russian", "default"}, parseESpeakVoices(out))
}
