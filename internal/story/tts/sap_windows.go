//go:build windows

package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"fairytales/internal/domain/story"
)

// SAPIEngine implements Windows SAPI TTS
type SAPIEngine struct {
	config Config
}

// the text travels through the environment so it is never parsed as script
const sapiScript = `Add-Type -AssemblyName System.Speech;
$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
$fmt = New-Object System.Speech.AudioFormat.SpeechAudioFormatInfo(%d, [System.Speech.AudioFormat.AudioBitsPerSample]::Sixteen, [System.Speech.AudioFormat.AudioChannel]::Mono);
$synth.Rate = %d;
$synth.Volume = %d;
%s
$synth.SetOutputToWaveFile($env:FAIRYTALES_WAV, $fmt);
$synth.Speak($env:FAIRYTALES_TEXT);
$synth.Dispose()`

func newSAPIEngine(config Config) (Engine, error) {
	return &SAPIEngine{config: config}, nil
}

func (s *SAPIEngine) Synthesize(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	out, err := os.CreateTemp("", "fairytales-sapi-*.wav")
	if err != nil {
		return story.AudioAsset{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	selectVoice := ""
	if voice == "" || story.IsKnownVoice(voice) {
		voice = s.config.Voice
	}
	if voice != "" && voice != "default" {
		selectVoice = "$synth.SelectVoice($env:FAIRYTALES_VOICE);"
	}

	speed := s.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	volume := s.config.Volume
	if volume <= 0 {
		volume = 1.0
	}
	script := fmt.Sprintf(sapiScript,
		Format.SampleRate,
		int(speed*10)-10, // Convert to SAPI range (-10 to 10)
		int(volume*100),  // Convert to SAPI range (0 to 100)
		selectVoice)

	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	cmd.Env = append(os.Environ(),
		"FAIRYTALES_WAV="+out.Name(),
		"FAIRYTALES_TEXT="+text,
		"FAIRYTALES_VOICE="+voice)
	if output, err := cmd.CombinedOutput(); err != nil {
		return story.AudioAsset{}, fmt.Errorf("SAPI error: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return readWAVAsset(out.Name())
}

func (s *SAPIEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	return []string{"Microsoft Irina Desktop", "Microsoft Pavel", "Microsoft David", "Microsoft Zira"}, nil
}
