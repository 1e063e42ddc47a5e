//go:build darwin

package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"fairytales/internal/domain/story"
)

// AVFoundationEngine renders speech with the macOS 'say' command
type AVFoundationEngine struct {
	config Config
}

func newAVFoundationEngine(config Config) (Engine, error) {
	if _, err := exec.LookPath("say"); err != nil {
		return nil, fmt.Errorf("say command not found: %w", err)
	}
	return &AVFoundationEngine{config: config}, nil
}

func (av *AVFoundationEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	out, err := os.CreateTemp("", "fairytales-say-*.wav")
	if err != nil {
		return story.AudioAsset{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	args := []string{}

	// Catalogue narrators are not macOS voices; fall back to the configured one
	if voice == "" || story.IsKnownVoice(voice) {
		voice = av.config.Voice
	}
	if voice != "" && voice != "default" {
		args = append(args, "-v", voice)
	}

	// Set rate (words per minute, default is ~175)
	speed := av.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	args = append(args, "-r", fmt.Sprintf("%.0f", 175*speed))

	args = append(args,
		"-o", out.Name(),
		"--file-format=WAVE",
		fmt.Sprintf("--data-format=LEI16@%d", Format.SampleRate),
		text)

	if output, err := exec.CommandContext(ctx, "say", args...).CombinedOutput(); err != nil {
		return story.AudioAsset{}, fmt.Errorf("say failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return readWAVAsset(out.Name())
}

func (av *AVFoundationEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, "say", "-v", "?").Output()
	if err != nil {
		return nil, err
	}

	// The output format is: "VoiceName    language    # description"
	voices := []string{}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			voices = append(voices, fields[0])
		}
	}
	return voices, nil
}
