package tts

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"fairytales/internal/domain/story"
)

// MockTTSEngine renders a quiet tone whose length follows the word count.
// It needs no network or speech tooling and is used offline and in tests.
type MockTTSEngine struct {
	speed float64

	mu    sync.Mutex
	calls int
	fail  error
}

// per word at speed 1.0
const mockWordDuration = 60 * time.Millisecond

func NewMockTTSEngine(c Config) *MockTTSEngine {
	speed := c.Speed
	if speed <= 0 {
		speed = 1.0
	}
	return &MockTTSEngine{speed: speed}
}

// FailWith makes subsequent Synthesize calls return err; nil restores success.
func (m *MockTTSEngine) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls reports how many times Synthesize reached the engine.
func (m *MockTTSEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockTTSEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	m.mu.Lock()
	m.calls++
	fail := m.fail
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return story.AudioAsset{}, err
	}
	if fail != nil {
		return story.AudioAsset{}, fail
	}

	words := len(strings.Fields(text))
	if words == 0 {
		return story.AudioAsset{}, fmt.Errorf("nothing to say")
	}
	length := time.Duration(float64(words) * float64(mockWordDuration) / m.speed)
	return EncodeAsset(mockTone(Format.SampleRate.N(length))), nil
}

func (m *MockTTSEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	voices := make([]string, 0, len(story.Voices))
	for _, v := range story.Voices {
		voices = append(voices, v.ID)
	}
	return voices, nil
}

// mockTone returns n frames of a 440 Hz sine at low amplitude.
func mockTone(n int) []byte {
	pcm := make([]byte, n*Format.Width())
	rate := float64(Format.SampleRate)
	for i := 0; i < n; i++ {
		v := 0.1 * math.Sin(2*math.Pi*440*float64(i)/rate)
		Format.EncodeSigned(pcm[i*Format.Width():], [2]float64{v, v})
	}
	return pcm
}
