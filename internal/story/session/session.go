// Package session drives one story from the first prompt to its ending.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"fairytales/internal/domain/story"
	"fairytales/internal/story/generation"
	"fairytales/internal/story/prompt"
	"fairytales/internal/story/response"

	"github.com/sirupsen/logrus"
)

var (
	ErrTurnInFlight      = errors.New("a story turn is already in progress")
	ErrChoiceUnavailable = errors.New("no choice can be made now")
)

type Turn int

const (
	Idle Turn = iota
	GeneratingFirstPart
	GeneratingContinuation
	Terminal
	Failed
)

func (t Turn) String() string {
	switch t {
	case Idle:
		return "idle"
	case GeneratingFirstPart:
		return "generating-first-part"
	case GeneratingContinuation:
		return "generating-continuation"
	case Terminal:
		return "terminal"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("turn(%d)", int(t))
	}
}

// Narrator turns part text into audio.
type Narrator interface {
	Narrate(ctx context.Context, text, voice string) (story.AudioAsset, error)
}

// Gate is the usage policy seen from the session.
type Gate interface {
	Check(ctx context.Context, interactive bool) error
	Record(ctx context.Context, interactive bool) error
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Request  story.Request
	Parts    []story.Part
	Choices  []string
	Turn     Turn
	LastErr  error
	Autoplay *int
	// HasChannel is true once an interactive story has an open conversation.
	HasChannel bool
}

// Outcome describes the part a successful turn appended.
type Outcome struct {
	Index   int
	Part    story.Part
	Choices []string
	Final   bool
	// NarrationErr is set when the part was kept without audio.
	NarrationErr error
}

type Session struct {
	provider generation.Provider
	narrator Narrator
	gate     Gate
	log      *logrus.Entry

	inFlight atomic.Bool

	mu       sync.Mutex
	req      story.Request
	parts    []story.Part
	choices  []string
	turn     Turn
	channel  generation.Channel
	lastErr  error
	autoplay *int
	listener func(Snapshot)
}

func New(provider generation.Provider, narrator Narrator, gate Gate) *Session {
	return &Session{
		provider: provider,
		narrator: narrator,
		gate:     gate,
		log:      logrus.WithField("component", "session"),
	}
}

// OnChange registers fn to receive a snapshot after every transition.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Request:    s.req,
		Parts:      append([]story.Part(nil), s.parts...),
		Choices:    []string{},
		Turn:       s.turn,
		LastErr:    s.lastErr,
		HasChannel: s.channel != nil,
	}
	if s.turn == Idle {
		snap.Choices = append(snap.Choices, s.choices...)
	}
	if s.autoplay != nil {
		idx := *s.autoplay
		snap.Autoplay = &idx
	}
	return snap
}

// update mutates state under the lock and notifies the listener outside it.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(snap)
	}
}

// ClearAutoplay acknowledges the autoplay signal.
func (s *Session) ClearAutoplay() {
	s.update(func() { s.autoplay = nil })
}

// Start begins a new story. Any previous story in this session is dropped.
func (s *Session) Start(ctx context.Context, req story.Request) (Outcome, error) {
	req = req.ApplyTemplate()
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrTurnInFlight
	}
	defer s.inFlight.Store(false)

	if err := s.gate.Check(ctx, req.Interactive); err != nil {
		return Outcome{}, err
	}

	s.update(func() {
		s.req = req
		s.parts = nil
		s.choices = nil
		s.channel = nil
		s.lastErr = nil
		s.autoplay = nil
		s.turn = GeneratingFirstPart
	})

	log := s.log.WithFields(logrus.Fields{
		"interactive": req.Interactive,
		"template":    req.TemplateID,
	})
	log.Info("Starting story")

	var (
		ch  generation.Channel
		raw string
		err error
	)
	if req.Interactive {
		ch, err = s.provider.Open(ctx)
		if err == nil {
			raw, err = ch.Send(ctx, prompt.Build(req, prompt.Initial()))
		}
	} else {
		raw, err = s.provider.OneShot(ctx, prompt.Build(req, prompt.Simple()))
	}
	if err != nil {
		return Outcome{}, s.fail(fmt.Errorf("%w: %w", story.ErrGenerationFailed, err), true)
	}

	text, choices, final, err := interpret(response.Parse(raw), req.Interactive)
	if err != nil {
		return Outcome{}, s.fail(fmt.Errorf("%w: %w", story.ErrGenerationFailed, err), true)
	}

	part, narrationErr := s.narrate(ctx, text, req.VoicePreference)

	if err := s.gate.Record(ctx, req.Interactive); err != nil {
		log.WithError(err).Warn("Failed to record usage")
	}

	next := Idle
	if req.Interactive && final {
		next = Terminal
	}
	s.update(func() {
		s.parts = []story.Part{part}
		s.choices = choices
		if req.Interactive {
			s.channel = ch
		}
		s.turn = next
	})

	log.WithField("choices", len(choices)).Info("First part ready")
	return Outcome{Index: 0, Part: part, Choices: append([]string{}, choices...), Final: final, NarrationErr: narrationErr}, nil
}

// Choose continues an interactive story with the picked branch.
func (s *Session) Choose(ctx context.Context, choice string) (Outcome, error) {
	choice = strings.TrimSpace(choice)
	if !s.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrTurnInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	ch, req := s.channel, s.req
	available := ch != nil && s.turn == Idle && len(s.choices) > 0
	s.mu.Unlock()
	if !available {
		return Outcome{}, ErrChoiceUnavailable
	}
	if choice == "" {
		return Outcome{}, fmt.Errorf("%w: empty choice", ErrChoiceUnavailable)
	}

	s.update(func() {
		s.lastErr = nil
		s.turn = GeneratingContinuation
	})
	s.log.WithField("choice", choice).Info("Continuing story")

	raw, err := ch.Send(ctx, prompt.Build(req, prompt.Continue(choice)))
	if err != nil {
		return Outcome{}, s.fail(fmt.Errorf("%w: %w", story.ErrGenerationFailed, err), false)
	}

	text, choices, final, err := interpret(response.Parse(raw), true)
	if err != nil {
		return Outcome{}, s.fail(err, false)
	}

	part, narrationErr := s.narrate(ctx, text, req.VoicePreference)

	var index int
	s.update(func() {
		s.parts = append(s.parts, part)
		index = len(s.parts) - 1
		s.choices = choices
		if part.HasAudio() {
			s.autoplay = &index
		}
		if final {
			s.turn = Terminal
		} else {
			s.turn = Idle
		}
	})

	s.log.WithFields(logrus.Fields{
		"part":  index,
		"final": final,
	}).Info("Continuation ready")
	return Outcome{Index: index, Part: part, Choices: append([]string{}, choices...), Final: final, NarrationErr: narrationErr}, nil
}

// RetryNarration synthesizes audio again for a part that has none.
func (s *Session) RetryNarration(ctx context.Context, index int) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrTurnInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if index < 0 || index >= len(s.parts) {
		s.mu.Unlock()
		return fmt.Errorf("no story part %d", index)
	}
	p, voice := s.parts[index], s.req.VoicePreference
	s.mu.Unlock()

	if p.HasAudio() {
		return nil
	}

	part, err := s.narrate(ctx, p.Text, voice)
	if err != nil {
		return err
	}
	s.update(func() {
		if index < len(s.parts) {
			s.parts[index] = part
		}
	})
	return nil
}

// narrate builds the part; a narration failure keeps the text without audio.
func (s *Session) narrate(ctx context.Context, text, voice string) (story.Part, error) {
	if voice == "" {
		voice = story.DefaultVoice
	}
	part := story.Part{Text: text}

	asset, err := s.narrator.Narrate(ctx, text, voice)
	if err != nil {
		s.log.WithError(err).Warn("Part kept without narration")
		return part, err
	}
	if !asset.IsEmpty() {
		part.Audio = &asset
	}
	return part, nil
}

// fail publishes Failed and settles back to Idle with err recorded.
func (s *Session) fail(err error, first bool) error {
	s.log.WithError(err).Error("Story turn failed")
	s.update(func() {
		s.lastErr = err
		s.turn = Failed
		if first {
			s.parts = nil
			s.choices = nil
			s.channel = nil
		}
	})
	s.update(func() { s.turn = Idle })
	return err
}

// interpret turns a parsed reply into part text and the next choices.
// Interactive turns need a structured reply; one without choices ends the story.
func interpret(r response.Result, interactive bool) (text string, choices []string, final bool, err error) {
	text = strings.TrimSpace(r.Story)
	if text == "" {
		return "", nil, false, story.ErrMalformedContinuation
	}
	if !interactive {
		return text, []string{}, true, nil
	}
	if r.Format == response.Plain {
		return "", nil, false, fmt.Errorf("%w: reply carries no choices structure", story.ErrMalformedContinuation)
	}

	choices = story.NormalizeChoices(r.Choices)
	if r.IsFinal || len(choices) == 0 {
		return text, []string{}, true, nil
	}
	return text, choices, false, nil
}
