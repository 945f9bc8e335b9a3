package playback

import (
	"math"
	"sync"
	"time"

	"ielts-practice-engine/internal/domain"
)

// DefaultScrollSuppression is how long manual scrolling pauses auto-scroll.
const DefaultScrollSuppression = 5 * time.Second

// ResolveActiveCue returns the index of the first cue with start <= t < end, or -1.
// Cues are scanned in order so overlapping cues resolve to the earliest one.
func ResolveActiveCue(cues []domain.Cue, t float64) int {
	for i, c := range cues {
		if c.StartTime <= t && t < c.EndTime {
			return i
		}
	}
	return -1
}

// Hooks receive synchronizer events. Any field may be nil.
type Hooks struct {
	// OnCueChange fires whenever the active cue index changes.
	OnCueChange func(index int)
	// OnScroll asks the view to bring the cue into view.
	OnScroll func(index int)
}

type Option func(*Synchronizer)

// WithSuppressionWindow overrides the manual-scroll suppression window.
func WithSuppressionWindow(d time.Duration) Option {
	return func(s *Synchronizer) { s.window = d }
}

// WithClock is used by tests for deterministic suppression windows.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithHooks(h Hooks) Option {
	return func(s *Synchronizer) { s.hooks = h }
}

// Synchronizer tracks playback position against a cue track and drives auto-scroll.
type Synchronizer struct {
	mu         sync.Mutex
	cues       []domain.Cue
	state      domain.PlaybackState
	window     time.Duration
	now        func() time.Time
	userScroll time.Time
	hooks      Hooks
}

func NewSynchronizer(cues []domain.Cue, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		cues:   cues,
		window: DefaultScrollSuppression,
		now:    time.Now,
		state:  domain.PlaybackState{ActiveCueIndex: -1},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Cues returns the track being synchronized.
func (s *Synchronizer) Cues() []domain.Cue {
	return s.cues
}

// Update handles a media time-update signal.
func (s *Synchronizer) Update(currentTime float64) int {
	s.mu.Lock()
	s.state.CurrentTime = clamp(currentTime)
	ev := s.resolveLocked()
	idx := s.state.ActiveCueIndex
	s.mu.Unlock()

	s.emit(ev)
	return idx
}

// UserScrolled records manual scroll/touch input, restarting the suppression window.
func (s *Synchronizer) UserScrolled() {
	s.mu.Lock()
	s.userScroll = s.now()
	s.mu.Unlock()
}

// AutoScrollSuppressed reports whether the user scrolled within the window.
func (s *Synchronizer) AutoScrollSuppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressedLocked()
}

// SeekTo moves the playhead without changing the play/pause state (scrub bar).
func (s *Synchronizer) SeekTo(t float64) int {
	return s.Update(t)
}

// JumpTo seeks to the start of a cue and resumes playback (cue click).
func (s *Synchronizer) JumpTo(index int) (float64, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.cues) {
		s.mu.Unlock()
		return 0, domain.ErrCueNotFound
	}
	start := s.cues[index].StartTime
	s.state.CurrentTime = clamp(start)
	s.state.IsPlaying = true
	ev := s.resolveLocked()
	s.mu.Unlock()

	s.emit(ev)
	return start, nil
}

func (s *Synchronizer) Play() {
	s.mu.Lock()
	s.state.IsPlaying = true
	s.mu.Unlock()
}

func (s *Synchronizer) Pause() {
	s.mu.Lock()
	s.state.IsPlaying = false
	s.mu.Unlock()
}

func (s *Synchronizer) State() domain.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

type cueEvent struct {
	changed bool
	scroll  bool
	index   int
}

func (s *Synchronizer) resolveLocked() cueEvent {
	idx := ResolveActiveCue(s.cues, s.state.CurrentTime)
	if idx == s.state.ActiveCueIndex {
		return cueEvent{index: idx}
	}
	s.state.ActiveCueIndex = idx
	return cueEvent{
		changed: true,
		scroll:  idx >= 0 && !s.suppressedLocked(),
		index:   idx,
	}
}

func (s *Synchronizer) suppressedLocked() bool {
	if s.userScroll.IsZero() {
		return false
	}
	return s.now().Sub(s.userScroll) < s.window
}

// emit runs hooks outside the lock so they may call back into the synchronizer.
func (s *Synchronizer) emit(ev cueEvent) {
	if !ev.changed {
		return
	}
	if s.hooks.OnCueChange != nil {
		s.hooks.OnCueChange(ev.index)
	}
	if ev.scroll && s.hooks.OnScroll != nil {
		s.hooks.OnScroll(ev.index)
	}
}

func clamp(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	return t
}
