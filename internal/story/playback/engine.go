// Package playback plays narrated story parts one at a time or as a single
// continuous reading.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fairytales/internal/domain/story"
	"fairytales/internal/story/tts"

	"github.com/faiface/beep"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSegmentUnavailable = errors.New("no playable audio for this part")
	ErrClosed             = errors.New("playback engine closed")
)

type State int

const (
	Stopped State = iota
	PlayingSegment
	PlayingAll
)

func (s State) String() string {
	switch s {
	case PlayingSegment:
		return "playing-segment"
	case PlayingAll:
		return "playing-all"
	default:
		return "stopped"
	}
}

// Cue places one part on the continuous timeline.
type Cue struct {
	Part     int
	Start    time.Duration
	Duration time.Duration
}

type segment struct {
	data string
	buf  *beep.Buffer
}

// Engine owns the decoded audio of a story. Segments keep the index of the
// part they belong to; parts without audio have no segment.
type Engine struct {
	out Output
	log *logrus.Entry

	mu       sync.Mutex
	segments map[int]segment
	state    State
	current  int
	token    uint64
	closed   bool
	onChange func(State, int)
}

func NewEngine(out Output) *Engine {
	return &Engine{
		out:      out,
		log:      logrus.WithField("component", "playback"),
		segments: make(map[int]segment),
		current:  -1,
	}
}

// OnStateChange registers fn to be called with the new state and, for
// segment play, the part index (-1 otherwise).
func (e *Engine) OnStateChange(fn func(State, int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

func (e *Engine) State() (State, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.current
}

// Sync brings the decoded segments in line with parts. Only new or changed
// audio is decoded. Playback in progress is left running.
func (e *Engine) Sync(ctx context.Context, parts []story.Part) error {
	type job struct {
		index int
		data  string
	}
	var jobs []job

	e.mu.Lock()
	for i := range e.segments {
		if i >= len(parts) || !parts[i].HasAudio() {
			delete(e.segments, i)
		}
	}
	for i, p := range parts {
		if !p.HasAudio() {
			continue
		}
		if seg, ok := e.segments[i]; ok && seg.data == p.Audio.Data {
			continue
		}
		delete(e.segments, i)
		jobs = append(jobs, job{index: i, data: p.Audio.Data})
	}
	e.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}

	decoded := make([]*beep.Buffer, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for n, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf, err := tts.DecodeAsset(story.AudioAsset{Data: j.data})
			if err != nil {
				e.log.WithError(err).WithField("part", j.index).Warn("Skipping undecodable narration")
				return nil
			}
			decoded[n] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for n, j := range jobs {
		if decoded[n] != nil {
			e.segments[j.index] = segment{data: j.data, buf: decoded[n]}
		}
	}
	e.log.WithField("decoded", len(jobs)).Debug("Narration segments synced")
	return nil
}

// Available reports whether part index has a playable segment.
func (e *Engine) Available(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.segments[index]
	return ok
}

// Duration is the playing time of one segment.
func (e *Engine) Duration(index int) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seg, ok := e.segments[index]
	if !ok {
		return 0, false
	}
	return tts.Duration(seg.buf), true
}

// PlaySegment stops whatever is playing and plays one part.
func (e *Engine) PlaySegment(index int) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	seg, ok := e.segments[index]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: part %d", ErrSegmentUnavailable, index)
	}

	e.stopLocked()
	e.out.Play(e.tail(seg.buf.Streamer(0, seg.buf.Len())))
	e.state, e.current = PlayingSegment, index
	notify := e.notifier()
	e.mu.Unlock()

	notify()
	return nil
}

// PlayAll stops whatever is playing and plays every available segment back
// to back. The returned cues describe where each part starts.
func (e *Engine) PlayAll() []Cue {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}

	indices := make([]int, 0, len(e.segments))
	for i := range e.segments {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	e.stopLocked()
	if len(indices) == 0 {
		notify := e.notifier()
		e.mu.Unlock()
		notify()
		return nil
	}

	cues := make([]Cue, 0, len(indices))
	streamers := make([]beep.Streamer, 0, len(indices))
	var at time.Duration
	for _, i := range indices {
		buf := e.segments[i].buf
		d := tts.Duration(buf)
		cues = append(cues, Cue{Part: i, Start: at, Duration: d})
		streamers = append(streamers, buf.Streamer(0, buf.Len()))
		at += d
	}

	e.out.Play(e.tail(beep.Seq(streamers...)))
	e.state, e.current = PlayingAll, -1
	notify := e.notifier()
	e.mu.Unlock()

	notify()
	e.log.WithFields(logrus.Fields{
		"parts":    len(cues),
		"duration": at,
	}).Debug("Playing whole story")
	return cues
}

// Stop halts playback. Calling it when nothing plays is harmless.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasPlaying := e.state != Stopped
	e.stopLocked()
	notify := e.notifier()
	e.mu.Unlock()

	if wasPlaying {
		notify()
	}
}

// Autoplay plays part index once if it is available. The caller clears its
// autoplay signal when this returns true.
func (e *Engine) Autoplay(index int) bool {
	if !e.Available(index) {
		return false
	}
	return e.PlaySegment(index) == nil
}

// Close stops playback and releases the output. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.stopLocked()
	e.closed = true
	e.segments = make(map[int]segment)
	e.mu.Unlock()

	return e.out.Close()
}

func (e *Engine) stopLocked() {
	e.token++
	if e.state != Stopped {
		e.out.Clear()
	}
	e.state, e.current = Stopped, -1
}

// tail appends the end-of-playback callback. The callback runs on the audio
// goroutine, which must not block on the engine lock.
func (e *Engine) tail(s beep.Streamer) beep.Streamer {
	tok := e.token
	return beep.Seq(s, beep.Callback(func() {
		go e.finished(tok)
	}))
}

func (e *Engine) finished(tok uint64) {
	e.mu.Lock()
	if tok != e.token || e.state == Stopped {
		e.mu.Unlock()
		return
	}
	e.state, e.current = Stopped, -1
	notify := e.notifier()
	e.mu.Unlock()

	notify()
}

func (e *Engine) notifier() func() {
	fn, state, current := e.onChange, e.state, e.current
	return func() {
		if fn != nil {
			fn(state, current)
		}
	}
}
