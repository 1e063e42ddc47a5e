package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"fairytales/internal/domain/story"
	"fairytales/internal/story/generation"
	"fairytales/internal/story/response"
	"fairytales/internal/story/tts"
	"fairytales/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	anyCtx  = mock.Anything
	anyText = mock.AnythingOfType("string")
)

func simpleRequest() story.Request {
	return story.Request{
		ProtagonistName: "Аня",
		Companion:       "котёнок",
		Setting:         "лес",
		VoicePreference: "Kore",
	}
}

func interactiveRequest() story.Request {
	req := simpleRequest()
	req.Interactive = true
	return req
}

func audio() story.AudioAsset {
	return tts.EncodeAsset(make([]byte, 480))
}

const (
	opening = "```json\n{\"story\": \"Аня и котёнок нашли тропинку.\", \"choices\": [\"вариант 1\", \"вариант 2\"], \"isFinal\": false}\n```"
	middle  = `{"story": "Они перешли ручей.", "choices": ["налево", "направо", "прямо"], "isFinal": false}`
	ending  = `{"story": "И все вернулись домой.", "choices": [], "isFinal": true}`
)

func TestStartSimpleGuest(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	narrator := &mockNarrator{}
	store := usage.NewMemoryStore()
	gate := usage.NewGate(usage.Account{ID: "guest", Status: usage.StatusGuest}, store, usage.DefaultLimits())

	provider.On("OneShot", anyCtx, anyText).Return("Жила-была Аня. Конец.", nil).Once()
	narrator.On("Narrate", anyCtx, "Жила-была Аня. Конец.", "Kore").Return(audio(), nil).Once()

	s := New(provider, narrator, gate)
	out, err := s.Start(ctx, simpleRequest())
	require.NoError(t, err)
	assert.Empty(t, out.Choices)
	assert.NoError(t, out.NarrationErr)

	snap := s.Snapshot()
	require.Len(t, snap.Parts, 1)
	assert.NotEmpty(t, snap.Parts[0].Text)
	assert.True(t, snap.Parts[0].HasAudio())
	assert.Empty(t, snap.Choices)
	assert.Equal(t, Idle, snap.Turn)
	assert.False(t, snap.HasChannel)

	ledger, err := store.Load(ctx, "guest")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.GuestSimpleCreations)

	// a simple story never opens a channel
	provider.AssertNotCalled(t, "Open", anyCtx)
	provider.AssertExpectations(t)
	narrator.AssertExpectations(t)
}

func TestInteractiveStoryToTheEnd(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	channel := &mockChannel{}
	narrator := &mockNarrator{}
	store := usage.NewMemoryStore()
	gate := usage.NewGate(usage.Account{ID: "sub", Status: usage.StatusSubscribed, Tier: usage.Tier1}, store, usage.DefaultLimits())

	provider.On("Open", anyCtx).Return(channel, nil).Once()
	channel.On("Send", anyCtx, mock.MatchedBy(func(p string) bool { return !strings.Contains(p, "вариант 1") })).Return(opening, nil).Once()
	channel.On("Send", anyCtx, mock.MatchedBy(func(p string) bool { return strings.Contains(p, `"вариант 1"`) })).Return(middle, nil).Once()
	channel.On("Send", anyCtx, mock.MatchedBy(func(p string) bool { return strings.Contains(p, `"прямо"`) })).Return(ending, nil).Once()
	narrator.On("Narrate", anyCtx, anyText, "Kore").Return(audio(), nil)

	s := New(provider, narrator, gate)
	out, err := s.Start(ctx, interactiveRequest())
	require.NoError(t, err)
	assert.False(t, out.Final)
	assert.Equal(t, []string{"вариант 1", "вариант 2"}, out.Choices)
	assert.Nil(t, s.Snapshot().Autoplay, "first part does not autoplay")

	out, err = s.Choose(ctx, "вариант 1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Index)
	snap := s.Snapshot()
	assert.Len(t, snap.Parts, 2)
	assert.Len(t, snap.Choices, 3)
	require.NotNil(t, snap.Autoplay)
	assert.Equal(t, 1, *snap.Autoplay)

	s.ClearAutoplay()
	assert.Nil(t, s.Snapshot().Autoplay)

	out, err = s.Choose(ctx, "прямо")
	require.NoError(t, err)
	assert.True(t, out.Final)

	snap = s.Snapshot()
	assert.Len(t, snap.Parts, 3)
	assert.Empty(t, snap.Choices)
	assert.Equal(t, Terminal, snap.Turn)

	_, err = s.Choose(ctx, "прямо")
	assert.ErrorIs(t, err, ErrChoiceUnavailable)
	assert.Len(t, s.Snapshot().Parts, 3)

	// one creation recorded, continuations are free
	ledger, err := store.Load(ctx, "sub")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.Daily.Count)

	provider.AssertExpectations(t)
	channel.AssertExpectations(t)
}

func TestStartDeniedByPolicy(t *testing.T) {
	provider := &mockProvider{}
	gate := &mockGate{}
	denied := &usage.DeniedError{Reason: usage.ReasonSubscriptionRequired}
	gate.On("Check", anyCtx, true).Return(denied)

	s := New(provider, &mockNarrator{}, gate)
	var transitions int
	s.OnChange(func(Snapshot) { transitions++ })

	_, err := s.Start(context.Background(), interactiveRequest())
	assert.ErrorIs(t, err, usage.ErrPolicyDenied)
	assert.Zero(t, transitions)
	assert.Equal(t, Idle, s.Snapshot().Turn)
	provider.AssertNotCalled(t, "Open", anyCtx)
	gate.AssertNotCalled(t, "Record", anyCtx, mock.Anything)
}

func TestStartInvalidRequest(t *testing.T) {
	s := New(&mockProvider{}, &mockNarrator{}, &mockGate{})
	_, err := s.Start(context.Background(), story.Request{ProtagonistName: "Аня"})
	assert.ErrorIs(t, err, story.ErrInvalidRequest)
}

func TestStartGenerationFailure(t *testing.T) {
	provider := &mockProvider{}
	channel := &mockChannel{}
	gate := &mockGate{}
	gate.On("Check", anyCtx, true).Return(nil)
	provider.On("Open", anyCtx).Return(channel, nil)
	channel.On("Send", anyCtx, anyText).Return("", errors.New("connection reset"))

	s := New(provider, &mockNarrator{}, gate)
	var turns []Turn
	s.OnChange(func(snap Snapshot) { turns = append(turns, snap.Turn) })

	_, err := s.Start(context.Background(), interactiveRequest())
	assert.ErrorIs(t, err, story.ErrGenerationFailed)
	assert.Equal(t, []Turn{GeneratingFirstPart, Failed, Idle}, turns)

	snap := s.Snapshot()
	assert.Empty(t, snap.Parts)
	assert.False(t, snap.HasChannel)
	assert.ErrorIs(t, snap.LastErr, story.ErrGenerationFailed)
	gate.AssertNotCalled(t, "Record", anyCtx, mock.Anything)
}

func TestStartEmptyReplyFails(t *testing.T) {
	provider := &mockProvider{}
	gate := &mockGate{}
	gate.On("Check", anyCtx, false).Return(nil)
	provider.On("OneShot", anyCtx, anyText).Return("  \n ", nil)

	s := New(provider, &mockNarrator{}, gate)
	_, err := s.Start(context.Background(), simpleRequest())
	assert.ErrorIs(t, err, story.ErrGenerationFailed)
	assert.ErrorIs(t, err, story.ErrMalformedContinuation)
}

func TestChooseFailureKeepsPartsAndChoices(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	channel := &mockChannel{}
	narrator := &mockNarrator{}
	gate := &mockGate{}
	gate.On("Check", anyCtx, true).Return(nil)
	gate.On("Record", anyCtx, true).Return(nil)
	provider.On("Open", anyCtx).Return(channel, nil)
	narrator.On("Narrate", anyCtx, anyText, anyText).Return(audio(), nil)

	channel.On("Send", anyCtx, anyText).Return(opening, nil).Once()
	channel.On("Send", anyCtx, anyText).Return("", errors.New("timeout")).Once()
	channel.On("Send", anyCtx, anyText).Return(`{"story": "", "choices": ["x"]}`, nil).Once()
	channel.On("Send", anyCtx, anyText).Return(middle, nil).Once()

	s := New(provider, narrator, gate)
	_, err := s.Start(ctx, interactiveRequest())
	require.NoError(t, err)

	_, err = s.Choose(ctx, "вариант 1")
	assert.ErrorIs(t, err, story.ErrGenerationFailed)
	snap := s.Snapshot()
	assert.Len(t, snap.Parts, 1)
	assert.Equal(t, []string{"вариант 1", "вариант 2"}, snap.Choices)
	assert.Equal(t, Idle, snap.Turn)

	_, err = s.Choose(ctx, "вариант 1")
	assert.ErrorIs(t, err, story.ErrMalformedContinuation)
	assert.Len(t, s.Snapshot().Parts, 1)

	_, err = s.Choose(ctx, "вариант 1")
	require.NoError(t, err)
	snap = s.Snapshot()
	assert.Len(t, snap.Parts, 2)
	assert.Nil(t, snap.LastErr)

	// the channel was opened once and reused for every turn
	provider.AssertNumberOfCalls(t, "Open", 1)
	channel.AssertNumberOfCalls(t, "Send", 4)
}

func TestChooseWithoutChoices(t *testing.T) {
	s := New(&mockProvider{}, &mockNarrator{}, &mockGate{})
	_, err := s.Choose(context.Background(), "вариант 1")
	assert.ErrorIs(t, err, ErrChoiceUnavailable)
}

func TestChooseRejectsBlankChoice(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	channel := &mockChannel{}
	narrator := &mockNarrator{}
	gate := &mockGate{}
	gate.On("Check", anyCtx, true).Return(nil)
	gate.On("Record", anyCtx, true).Return(nil)
	provider.On("Open", anyCtx).Return(channel, nil)
	channel.On("Send", anyCtx, anyText).Return(opening, nil).Once()
	narrator.On("Narrate", anyCtx, anyText, anyText).Return(audio(), nil)

	s := New(provider, narrator, gate)
	_, err := s.Start(ctx, interactiveRequest())
	require.NoError(t, err)

	_, err = s.Choose(ctx, "   ")
	assert.ErrorIs(t, err, ErrChoiceUnavailable)
	channel.AssertNumberOfCalls(t, "Send", 1)
}

// blockingChannel holds the second Send until released.
type blockingChannel struct {
	sends   int
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChannel) Send(ctx context.Context, text string) (string, error) {
	b.sends++
	if b.sends == 1 {
		return opening, nil
	}
	close(b.entered)
	<-b.release
	return ending, nil
}

type fixedProvider struct {
	ch generation.Channel
}

func (p fixedProvider) Open(ctx context.Context) (generation.Channel, error) { return p.ch, nil }
func (p fixedProvider) OneShot(ctx context.Context, text string) (string, error) {
	return "", errors.New("not used")
}

func TestConcurrentChooseRejected(t *testing.T) {
	ctx := context.Background()
	ch := &blockingChannel{entered: make(chan struct{}), release: make(chan struct{})}
	narrator := &mockNarrator{}
	narrator.On("Narrate", anyCtx, anyText, anyText).Return(audio(), nil)
	gate := &mockGate{}
	gate.On("Check", anyCtx, true).Return(nil)
	gate.On("Record", anyCtx, true).Return(nil)

	s := New(fixedProvider{ch: ch}, narrator, gate)
	_, err := s.Start(ctx, interactiveRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Choose(ctx, "вариант 1")
	}()

	<-ch.entered
	snap := s.Snapshot()
	assert.Equal(t, GeneratingContinuation, snap.Turn)
	assert.Empty(t, snap.Choices, "choices are hidden while a turn runs")

	_, err = s.Choose(ctx, "вариант 2")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	_, err = s.Start(ctx, interactiveRequest())
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(ch.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, 2, ch.sends)
	assert.Equal(t, Terminal, s.Snapshot().Turn)
}

func TestNarrationFailureKeepsPart(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	narrator := &mockNarrator{}
	gate := &mockGate{}
	gate.On("Check", anyCtx, false).Return(nil)
	gate.On("Record", anyCtx, false).Return(nil).Once()
	provider.On("OneShot", anyCtx, anyText).Return("Сказка без голоса.", nil)

	failure := errors.Join(story.ErrNarrationFailed, errors.New("tts down"))
	narrator.On("Narrate", anyCtx, "Сказка без голоса.", "Kore").Return(story.AudioAsset{}, failure).Once()

	s := New(provider, narrator, gate)
	out, err := s.Start(ctx, simpleRequest())
	require.NoError(t, err)
	assert.ErrorIs(t, out.NarrationErr, story.ErrNarrationFailed)
	assert.False(t, s.Snapshot().Parts[0].HasAudio())
	gate.AssertExpectations(t)

	narrator.On("Narrate", anyCtx, "Сказка без голоса.", "Kore").Return(audio(), nil).Once()
	require.NoError(t, s.RetryNarration(ctx, 0))
	assert.True(t, s.Snapshot().Parts[0].HasAudio())

	// already narrated parts are left alone
	require.NoError(t, s.RetryNarration(ctx, 0))
	narrator.AssertNumberOfCalls(t, "Narrate", 2)

	assert.Error(t, s.RetryNarration(ctx, 5))
}

func TestContinuationWithoutAudioDoesNotAutoplay(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	channel := &mockChannel{}
	narrator := &mockNarrator{}
	gate := &mockGate{}
	gate.On("Check", anyCtx, true).Return(nil)
	gate.On("Record", anyCtx, true).Return(nil)
	provider.On("Open", anyCtx).Return(channel, nil)
	channel.On("Send", anyCtx, anyText).Return(opening, nil).Once()
	channel.On("Send", anyCtx, anyText).Return(middle, nil).Once()
	narrator.On("Narrate", anyCtx, anyText, anyText).Return(audio(), nil).Once()
	narrator.On("Narrate", anyCtx, anyText, anyText).Return(story.AudioAsset{}, story.ErrNarrationFailed).Once()

	s := New(provider, narrator, gate)
	_, err := s.Start(ctx, interactiveRequest())
	require.NoError(t, err)
	_, err = s.Choose(ctx, "вариант 2")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Parts, 2)
	assert.Nil(t, snap.Autoplay)
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		interactive bool
		text        string
		choices     []string
		final       bool
		err         error
	}{
		{"plain interactive is malformed", "Просто текст.", true, "", nil, false, story.ErrMalformedContinuation},
		{"plain simple", "Просто текст.", false, "Просто текст.", []string{}, true, nil},
		{"structured without choices ends story", `{"story":"Вот и всё.","choices":[]}`, true, "Вот и всё.", []string{}, true, nil},
		{"structured final drops choices", `{"story":"Конец.","choices":["ещё"],"isFinal":true}`, true, "Конец.", []string{}, true, nil},
		{"choices normalized", `{"story":"Дальше.","choices":[" a ","","b","c","d"]}`, true, "Дальше.", []string{"a", "b", "c"}, false, nil},
		{"trailing list", `Идём дальше. ["в лес", "к морю"]`, true, "Идём дальше.", []string{"в лес", "к морю"}, false, nil},
		{"simple ignores choices", `{"story":"Сказка.","choices":["a","b"]}`, false, "Сказка.", []string{}, true, nil},
		{"empty", "  ", true, "", nil, false, story.ErrMalformedContinuation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, choices, final, err := interpretRaw(tt.raw, tt.interactive)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.choices, choices)
			assert.Equal(t, tt.final, final)
		})
	}
}

func interpretRaw(raw string, interactive bool) (string, []string, bool, error) {
	return interpret(response.Parse(raw), interactive)
}

func TestOutcomeChoicesAreCopies(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	channel := &mockChannel{}
	narrator := &mockNarrator{}
	gate := usage.NewGate(usage.Account{ID: "owner", Status: usage.StatusOwner}, usage.NewMemoryStore(), usage.DefaultLimits())

	provider.On("Open", anyCtx).Return(channel, nil).Once()
	channel.On("Send", anyCtx, anyText).Return(opening, nil).Once()
	channel.On("Send", anyCtx, anyText).Return(middle, nil).Once()
	narrator.On("Narrate", anyCtx, anyText, "Kore").Return(audio(), nil)

	s := New(provider, narrator, gate)
	out, err := s.Start(ctx, interactiveRequest())
	require.NoError(t, err)
	out.Choices[0] = "чужой вариант"
	assert.Equal(t, []string{"вариант 1", "вариант 2"}, s.Snapshot().Choices)

	out, err = s.Choose(ctx, "вариант 1")
	require.NoError(t, err)
	out.Choices[2] = "чужой вариант"
	assert.Equal(t, []string{"налево", "направо", "прямо"}, s.Snapshot().Choices)
}
