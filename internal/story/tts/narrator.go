package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fairytales/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// Narrator is the synthesizer the story session talks to. It never calls the
// engine for blank text and reports engine failures as ErrNarrationFailed.
type Narrator struct {
	engine Engine
	log    *logrus.Entry
}

func NewNarrator(engine Engine) *Narrator {
	return &Narrator{
		engine: engine,
		log:    logrus.WithField("component", "narrator"),
	}
}

func (n *Narrator) Narrate(ctx context.Context, text, voice string) (story.AudioAsset, error) {
	if strings.TrimSpace(text) == "" {
		return story.AudioAsset{}, nil
	}

	start := time.Now()
	asset, err := n.engine.Synthesize(ctx, text, voice)
	observeNarration(start, err)
	if err != nil {
		n.log.WithError(err).WithField("voice", voice).Warn("Narration failed")
		return story.AudioAsset{}, fmt.Errorf("%w: %w", story.ErrNarrationFailed, err)
	}

	n.log.WithFields(logrus.Fields{
		"voice":    voice,
		"chars":    len([]rune(text)),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Narration ready")
	return asset, nil
}
