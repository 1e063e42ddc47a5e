package tts

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	"fairytales/internal/domain/story"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// Format is the narration format every asset is assumed to carry:
// 24 kHz mono signed 16-bit little-endian PCM.
var Format = beep.Format{SampleRate: 24000, NumChannels: 1, Precision: 2}

const resampleQuality = 4

// DecodeAsset turns an asset into a playable buffer.
func DecodeAsset(asset story.AudioAsset) (*beep.Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(asset.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", story.ErrPlaybackDecodeFailed, err)
	}
	return DecodePCM(raw)
}

// DecodePCM reads raw samples in Format into a buffer.
func DecodePCM(raw []byte) (*beep.Buffer, error) {
	width := Format.Width()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", story.ErrPlaybackDecodeFailed)
	}
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte frames",
			story.ErrPlaybackDecodeFailed, len(raw), width)
	}
	buf := beep.NewBuffer(Format)
	buf.Append(pcmStreamer(raw))
	return buf, nil
}

func pcmStreamer(raw []byte) beep.Streamer {
	width := Format.Width()
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		for n < len(samples) && len(raw) >= width {
			samples[n], _ = Format.DecodeSigned(raw[:width])
			raw = raw[width:]
			n++
		}
		return n, n > 0
	})
}

// EncodePCM drains s and returns its samples as raw PCM in Format,
// resampling when the source rate differs.
func EncodePCM(s beep.Streamer, from beep.Format) ([]byte, error) {
	if from.SampleRate != Format.SampleRate {
		s = beep.Resample(resampleQuality, from.SampleRate, Format.SampleRate, s)
	}

	var out bytes.Buffer
	var samples [512][2]float64
	frame := make([]byte, Format.Width())
	for {
		n, ok := s.Stream(samples[:])
		for _, sample := range samples[:n] {
			Format.EncodeSigned(frame, sample)
			out.Write(frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeWAV converts a WAV file into raw PCM in Format.
func DecodeWAV(data []byte) ([]byte, error) {
	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}
	defer streamer.Close()

	return EncodePCM(streamer, format)
}

// EncodeAsset wraps raw PCM into an asset.
func EncodeAsset(pcm []byte) story.AudioAsset {
	if len(pcm) == 0 {
		return story.AudioAsset{}
	}
	return story.AudioAsset{Data: base64.StdEncoding.EncodeToString(pcm)}
}

// Duration is the playing time of a decoded buffer.
func Duration(buf *beep.Buffer) time.Duration {
	return Format.SampleRate.D(buf.Len())
}
