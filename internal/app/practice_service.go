package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"ielts-practice-engine/internal/attempt"
	"ielts-practice-engine/internal/domain"
	"ielts-practice-engine/internal/playback"
	"ielts-practice-engine/internal/review"
	"ielts-practice-engine/internal/scoring"
	"ielts-practice-engine/internal/transcript"
)

// SessionRepository abstracts where open practice sessions live (in-memory, Redis, etc).
// There is at most one session per user.
type SessionRepository interface {
	Put(session *Session) (replaced *Session)
	Get(userID string) (*Session, bool)
	Delete(userID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptBackend is the remote Attempt/Quiz service.
type AttemptBackend interface {
	attempt.Service
	review.ResultSource
}

// PracticeService wires quizzes, attempts and reviews for connected users.
type PracticeService struct {
	sessions    SessionRepository
	quizzes     QuizRepository
	backend     AttemptBackend
	transcripts transcript.Source

	scorer       *scoring.Engine
	attemptOpts  []attempt.Option
	playbackOpts []playback.Option
}

type Option func(*PracticeService)

func WithScorer(e *scoring.Engine) Option {
	return func(s *PracticeService) { s.scorer = e }
}

func WithAttemptOptions(opts ...attempt.Option) Option {
	return func(s *PracticeService) { s.attemptOpts = append(s.attemptOpts, opts...) }
}

func WithPlaybackOptions(opts ...playback.Option) Option {
	return func(s *PracticeService) { s.playbackOpts = append(s.playbackOpts, opts...) }
}

func NewPracticeService(sessions SessionRepository, quizzes QuizRepository, backend AttemptBackend, transcripts transcript.Source, opts ...Option) *PracticeService {
	s := &PracticeService{
		sessions:    sessions,
		quizzes:     quizzes,
		backend:     backend,
		transcripts: transcripts,
		scorer:      scoring.NewEngine(scoring.DefaultThresholds()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open returns the user's session for quizID, creating it if needed.
// Opening a different quiz abandons the user's previous session.
func (s *PracticeService) Open(ctx context.Context, userID, quizID string) (*Session, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if existing, ok := s.sessions.Get(userID); ok && existing.QuizID == quizID && existing.Controller.State() != attempt.Abandoned {
		return existing, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	session := NewSession(userID, quizID)
	session.Controller = attempt.NewController(s.backend, quiz, userID, s.scorer, session.attemptHooks(), s.attemptOpts...)
	session.view = review.NewView(review.NewLoader(s.backend, s.transcripts))

	if replaced := s.sessions.Put(session); replaced != nil && replaced != session {
		log.Printf("user %s switched from quiz %s to %s", userID, replaced.QuizID, quizID)
		replaced.close()
	}
	return session, nil
}

// PreviewQuiz returns quiz content with answer keys removed.
func (s *PracticeService) PreviewQuiz(ctx context.Context, quizID string) (QuizView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizView{}, err
	}
	return PublicQuiz(quiz), nil
}

// Session returns the user's open session.
func (s *PracticeService) Session(userID string) (*Session, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Submit runs a manual submit and publishes the summary to subscribers.
func (s *PracticeService) Submit(ctx context.Context, userID string) (attempt.Outcome, error) {
	session, err := s.Session(userID)
	if err != nil {
		return attempt.Outcome{}, err
	}
	out, err := session.Controller.Submit(ctx)
	if err != nil || out.Skipped {
		return out, err
	}
	session.publish(Event{Type: EventSubmitted, Payload: NewSummary(out)})
	return out, nil
}

// Review loads the authoritative result for the user's submitted attempt and
// compares it with the local score.
func (s *PracticeService) Review(ctx context.Context, userID string) (*review.Review, review.Reconciliation, error) {
	session, err := s.Session(userID)
	if err != nil {
		return nil, review.Reconciliation{}, err
	}
	out, ok := session.Controller.LastOutcome()
	if !ok {
		return nil, review.Reconciliation{}, domain.ErrAttemptNotSubmitted
	}

	opts := append(append([]playback.Option(nil), s.playbackOpts...), playback.WithHooks(session.playbackHooks()))
	rev, err := session.view.Open(ctx, out.Attempt.ID, session.Controller.Quiz().TranscriptURL, opts...)
	if err != nil {
		return nil, review.Reconciliation{}, err
	}
	rec := rev.Reconcile(out.Score)
	if !rec.Matches {
		log.Printf("attempt %s: local score differs from service on %d questions", out.Attempt.ID, len(rec.Discrepancies))
	}
	return rev, rec, nil
}

// Close abandons and drops the user's session.
func (s *PracticeService) Close(userID string) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return
	}
	s.sessions.Delete(userID)
	session.close()
}

// Leave closes session if it is still the user's current one. A newer
// session opened from another connection is left alone.
func (s *PracticeService) Leave(session *Session) {
	current, ok := s.sessions.Get(session.UserID)
	if !ok || current != session {
		session.close()
		return
	}
	s.sessions.Delete(session.UserID)
	session.close()
}

// Session is one user's open quiz: its attempt controller, review view and
// event subscribers.
type Session struct {
	ID         string
	UserID     string
	QuizID     string
	CreatedAt  time.Time
	Controller *attempt.Controller

	view *review.View

	mu          sync.Mutex
	closed      bool
	subscribers map[chan Event]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
// Open attaches the controller and review view.
func NewSession(userID, quizID string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		QuizID:      quizID,
		CreatedAt:   time.Now(),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Review returns the review currently loaded for this session.
func (s *Session) Review() (*review.Review, bool) {
	if s.view == nil {
		return nil, false
	}
	return s.view.Current()
}

// Snapshot captures the session without exposing answer keys before submission.
func (s *Session) Snapshot() Snapshot {
	ctrl := s.Controller
	snap := Snapshot{
		SessionID: s.ID,
		Quiz:      PublicQuiz(ctrl.Quiz()),
		State:     ctrl.State().String(),
		Progress:  ctrl.Progress(),
		Answers:   ctrl.Ledger().Snapshot(),
	}
	if remaining, ok := ctrl.Remaining(); ok {
		snap.Remaining = &remaining
	}
	if out, ok := ctrl.LastOutcome(); ok {
		summary := NewSummary(out)
		snap.Summary = &summary
	}
	return snap
}

// Subscribe returns a channel of session events.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) close() {
	if s.Controller != nil {
		s.Controller.Abandon()
	}
	if s.view != nil {
		s.view.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) attemptHooks() attempt.Hooks {
	return attempt.Hooks{
		OnTick: func(remaining int) {
			s.publish(Event{Type: EventTick, Payload: TickPayload{Remaining: remaining}})
		},
		OnStateChange: func(state attempt.State) {
			payload := StatePayload{State: state.String()}
			if remaining, ok := s.Controller.Remaining(); ok {
				payload.Remaining = &remaining
			}
			s.publish(Event{Type: EventState, Payload: payload})
		},
		OnExpire: func() {
			s.publish(Event{Type: EventExpired, Payload: TickPayload{Remaining: 0}})
		},
		OnAutoSubmit: func(out attempt.Outcome, err error) {
			if err != nil {
				s.publish(Event{Type: EventError, Payload: ErrorPayload{Message: err.Error()}})
				return
			}
			s.publish(Event{Type: EventSubmitted, Payload: NewSummary(out)})
		},
	}
}

func (s *Session) playbackHooks() playback.Hooks {
	return playback.Hooks{
		OnCueChange: func(index int) {
			payload := CuePayload{Index: index}
			if rev, ok := s.Review(); ok && index >= 0 && index < len(rev.Cues) {
				cue := rev.Cues[index]
				payload.Cue = &cue
			}
			s.publish(Event{Type: EventCue, Payload: payload})
		},
		OnScroll: func(index int) {
			s.publish(Event{Type: EventScroll, Payload: ScrollPayload{Index: index}})
		},
	}
}
