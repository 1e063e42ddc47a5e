package playback

import (
	"fmt"
	"sync"
	"time"

	"fairytales/internal/story/tts"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is where decoded narration is sent.
type Output interface {
	Play(s beep.Streamer)
	// Clear drops everything queued or playing.
	Clear()
	Close() error
}

// SpeakerOutput plays on the default sound device.
type SpeakerOutput struct{}

func NewSpeakerOutput() (*SpeakerOutput, error) {
	sr := tts.Format.SampleRate
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	return &SpeakerOutput{}, nil
}

func (SpeakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (SpeakerOutput) Clear()               { speaker.Clear() }

func (SpeakerOutput) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

// DiscardOutput consumes streams as fast as possible without producing
// sound. Useful for headless runs.
type DiscardOutput struct {
	mu  sync.Mutex
	gen uint64
	wg  sync.WaitGroup
}

func NewDiscardOutput() *DiscardOutput {
	return &DiscardOutput{}
}

func (d *DiscardOutput) Play(s beep.Streamer) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		var samples [512][2]float64
		for d.live(gen) {
			if _, ok := s.Stream(samples[:]); !ok {
				return
			}
		}
	}()
}

func (d *DiscardOutput) live(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen == gen
}

func (d *DiscardOutput) Clear() {
	d.mu.Lock()
	d.gen++
	d.mu.Unlock()
}

func (d *DiscardOutput) Close() error {
	d.Clear()
	d.wg.Wait()
	return nil
}
