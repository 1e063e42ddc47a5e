// Cross-platform eSpeak implementation
package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"fairytales/internal/domain/story"
)

// ESpeakEngine implements TTS using eSpeak/eSpeak-NG
type ESpeakEngine struct {
	config Config
	path   string
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	if err := exec.Command(espeakPath, "--version").Run(); err != nil {
		return nil, fmt.Errorf("eSpeak test failed: %w", err)
	}

	if config.Voice == "" || config.Voice == "default" {
		config.Voice = "ru"
	}
	return &ESpeakEngine{config: config, path: espeakPath}, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

// espeakVoice keeps the configured language voice for catalogue narrators,
// which eSpeak does not know.
func (e *ESpeakEngine) espeakVoice(voice string) string {
	if voice == "" || story.IsKnownVoice(voice) {
		return e.config.Voice
	}
	return voice
}

func (e *ESpeakEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	out, err := os.CreateTemp("", "fairytales-espeak-*.wav")
	if err != nil {
		return story.AudioAsset{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	args := []string{"-v", e.espeakVoice(voice)}

	// Set speed (words per minute, default is 175)
	speed := e.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	args = append(args, "-s", strconv.Itoa(int(175*speed)))

	// Set volume (0-200, default is 100)
	volume := e.config.Volume
	if volume <= 0 {
		volume = 1.0
	}
	args = append(args, "-a", strconv.Itoa(int(100*volume)))

	args = append(args, "-w", out.Name(), text)

	cmd := exec.CommandContext(ctx, e.path, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return story.AudioAsset{}, fmt.Errorf("eSpeak failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return readWAVAsset(out.Name())
}

func (e *ESpeakEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}

	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Parse voice line: Pty Language Age/Gender VoiceName          File          Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}

// readWAVAsset loads a WAV file written by a local speech tool.
func readWAVAsset(path string) (story.AudioAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return story.AudioAsset{}, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	pcm, err := DecodeWAV(data)
	if err != nil {
		return story.AudioAsset{}, err
	}
	return EncodeAsset(pcm), nil
}
