package attempt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"ielts-practice-engine/internal/domain"
	"ielts-practice-engine/internal/ledger"
	"ielts-practice-engine/internal/scoring"
	"ielts-practice-engine/internal/timer"
)

// Service is the part of the remote Attempt/Quiz API the controller drives.
type Service interface {
	CreateAttempt(ctx context.Context, userID, quizID string) (string, error)
	SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) error
	FinalizeAttempt(ctx context.Context, attemptID string) error
}

type State int

const (
	NotStarted State = iota
	InProgress
	Submitting
	Submitted
	Abandoned
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Trigger records what started a submission.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

// BatchReport counts the per-answer submissions of one submit flow.
type BatchReport struct {
	Sent   int
	Failed int
	Errors []error
}

// Err joins every rejected submission, or returns nil.
func (b BatchReport) Err() error {
	return errors.Join(b.Errors...)
}

// Outcome is the result of a submit flow. Skipped is set when the call was
// ignored because another submission was in flight or already finished.
type Outcome struct {
	Trigger Trigger
	Skipped bool
	Attempt domain.Attempt
	Score   domain.ScoreResult
	Band    float64
	Answers BatchReport
}

// Partial reports whether some answers were rejected by the service.
func (o Outcome) Partial() bool {
	return o.Answers.Failed > 0
}

// Hooks deliver controller events to the owner. Any field may be nil.
type Hooks struct {
	OnTick        func(remaining int)
	OnStateChange func(State)
	OnExpire      func()
	OnAutoSubmit  func(Outcome, error)
}

type config struct {
	scheduler         timer.Scheduler
	tickInterval      time.Duration
	submitConcurrency int
	autoSubmitTimeout time.Duration
	now               func() time.Time
}

type Option func(*config)

func WithScheduler(s timer.Scheduler) Option {
	return func(c *config) { c.scheduler = s }
}

func WithTickInterval(d time.Duration) Option {
	return func(c *config) { c.tickInterval = d }
}

// WithSubmitConcurrency bounds parallel answer submissions; n <= 0 means unbounded.
func WithSubmitConcurrency(n int) Option {
	return func(c *config) { c.submitConcurrency = n }
}

func WithAutoSubmitTimeout(d time.Duration) Option {
	return func(c *config) { c.autoSubmitTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Controller runs one user's attempt at one quiz:
// NotStarted -> InProgress -> Submitting -> Submitted, or InProgress -> Abandoned.
type Controller struct {
	svc       Service
	quiz      domain.Quiz
	userID    string
	ledger    *ledger.Ledger
	scorer    *scoring.Engine
	countdown *timer.Countdown
	hooks     Hooks
	cfg       config

	// inFlight is the single guard shared by manual submit and auto-submit.
	inFlight atomic.Bool

	mu        sync.Mutex
	state     State
	starting  bool
	started   int
	attempt   domain.Attempt
	last      *Outcome
	stopTicks context.CancelFunc
}

func NewController(svc Service, quiz domain.Quiz, userID string, scorer *scoring.Engine, hooks Hooks, opts ...Option) *Controller {
	cfg := config{
		scheduler:         timer.TickerScheduler{},
		tickInterval:      time.Second,
		submitConcurrency: 8,
		autoSubmitTimeout: 30 * time.Second,
		now:               time.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}
	c := &Controller{
		svc:    svc,
		quiz:   quiz,
		userID: userID,
		ledger: ledger.New(),
		scorer: scorer,
		hooks:  hooks,
		cfg:    cfg,
	}
	if c.scorer == nil {
		c.scorer = scoring.NewEngine(scoring.DefaultThresholds())
	}
	c.countdown = timer.NewCountdown(c.handleExpire)
	return c
}

func (c *Controller) Quiz() domain.Quiz { return c.quiz }

func (c *Controller) Ledger() *ledger.Ledger { return c.ledger }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Attempt() domain.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Remaining returns the seconds left; ok is false for untimed attempts.
func (c *Controller) Remaining() (int, bool) {
	return c.countdown.Remaining()
}

// LastOutcome returns the outcome of the finalized attempt, if any.
func (c *Controller) LastOutcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// Start creates the remote attempt and arms the countdown.
func (c *Controller) Start(ctx context.Context) error {
	if c.userID == "" {
		return domain.ErrUnauthenticated
	}
	if c.quiz.ID == "" {
		return domain.ErrQuizNotFound
	}

	c.mu.Lock()
	if c.state != NotStarted || c.starting {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("start attempt: attempt is %s", state)
	}
	if c.quiz.AttemptsAllowed > 0 && c.started >= c.quiz.AttemptsAllowed {
		c.mu.Unlock()
		return domain.ErrAttemptsExhausted
	}
	c.starting = true
	c.mu.Unlock()

	attemptID, err := c.svc.CreateAttempt(ctx, c.userID, c.quiz.ID)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("create attempt: %w", err)
	}
	c.started++
	c.attempt = domain.Attempt{
		ID:               attemptID,
		QuizID:           c.quiz.ID,
		UserID:           c.userID,
		StartedAt:        c.cfg.now(),
		TimeLimitSeconds: c.quiz.TimeLimitSeconds,
		AttemptsAllowed:  c.quiz.AttemptsAllowed,
	}
	c.countdown.Start(c.quiz.TimeLimitSeconds)
	c.state = InProgress
	c.startTicksLocked()
	c.mu.Unlock()

	log.Printf("attempt %s started for user %s on quiz %s", attemptID, c.userID, c.quiz.ID)
	c.notify(InProgress)
	return nil
}

// SelectChoice records a choice click for the active attempt.
func (c *Controller) SelectChoice(questionID, choiceID string) (domain.Answer, error) {
	q, err := c.answerable(questionID)
	if err != nil {
		return domain.Answer{}, err
	}
	found := false
	for _, choice := range q.Choices {
		if choice.ID == choiceID {
			found = true
			break
		}
	}
	if !found {
		return domain.Answer{}, domain.ErrOptionNotFound
	}
	return c.ledger.SelectChoice(q, choiceID), nil
}

// SetText records a free-text answer for the active attempt.
func (c *Controller) SetText(questionID, text string) error {
	if _, err := c.answerable(questionID); err != nil {
		return err
	}
	c.ledger.SetText(questionID, text)
	return nil
}

func (c *Controller) Progress() ledger.Progress {
	return c.ledger.Progress(len(c.quiz.Questions))
}

func (c *Controller) answerable(questionID string) (domain.Question, error) {
	switch c.State() {
	case InProgress:
	case NotStarted:
		return domain.Question{}, domain.ErrAttemptNotStarted
	default:
		return domain.Question{}, domain.ErrAttemptClosed
	}
	for _, q := range c.quiz.Questions {
		if q.ID == questionID {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// Submit runs the manual submit flow. Calls made while another submission is
// in flight, or after the attempt was finalized, return a Skipped outcome.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	return c.submit(ctx, TriggerManual)
}

func (c *Controller) submit(ctx context.Context, trigger Trigger) (Outcome, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Outcome{Trigger: trigger, Skipped: true}, nil
	}

	c.mu.Lock()
	switch c.state {
	case InProgress:
	case Submitted:
		c.mu.Unlock()
		c.inFlight.Store(false)
		return Outcome{Trigger: trigger, Skipped: true}, nil
	default:
		c.mu.Unlock()
		c.inFlight.Store(false)
		return Outcome{Trigger: trigger}, domain.ErrAttemptNotStarted
	}
	c.state = Submitting
	c.stopTicksLocked()
	c.countdown.Stop()
	attempt := c.attempt
	c.mu.Unlock()
	c.notify(Submitting)

	answers := c.ledger.Snapshot()
	score := c.scorer.ScoreWithPassMark(c.quiz.Questions, answers, c.quiz.PassingPercentage)
	out := Outcome{
		Trigger: trigger,
		Attempt: attempt,
		Score:   score,
		Band:    scoring.BandScore(score.CorrectCount, score.TotalCount),
	}
	out.Answers = c.submitAnswers(ctx, buildSubmissions(attempt.ID, c.quiz.Questions, answers, score))
	if out.Answers.Failed > 0 {
		log.Printf("attempt %s: %d of %d answer submissions failed", attempt.ID, out.Answers.Failed, out.Answers.Sent)
	}

	if err := c.svc.FinalizeAttempt(ctx, attempt.ID); err != nil {
		c.mu.Lock()
		c.state = InProgress
		if c.countdown.Resume() {
			c.startTicksLocked()
		}
		c.mu.Unlock()
		c.inFlight.Store(false)
		log.Printf("attempt %s: finalize failed: %v", attempt.ID, err)
		c.notify(InProgress)
		return out, fmt.Errorf("%w: %w", domain.ErrFinalizeFailed, errors.Join(err, out.Answers.Err()))
	}

	c.mu.Lock()
	c.attempt.Submitted = true
	out.Attempt = c.attempt
	c.last = &out
	c.state = Submitted
	c.mu.Unlock()
	c.inFlight.Store(false)

	log.Printf("attempt %s submitted (%s): %s/%s points", attempt.ID, trigger, score.EarnedPoints, score.TotalPoints)
	c.notify(Submitted)
	return out, nil
}

// submitAnswers dispatches every submission concurrently. Failures do not
// stop the batch; each one is counted.
func (c *Controller) submitAnswers(ctx context.Context, subs []domain.AnswerSubmission) BatchReport {
	report := BatchReport{Sent: len(subs)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	if c.cfg.submitConcurrency > 0 {
		g.SetLimit(c.cfg.submitConcurrency)
	}
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := c.svc.SubmitAnswer(ctx, sub); err != nil {
				mu.Lock()
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("submit answer %s: %w", sub.QuestionID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// buildSubmissions emits one submission per answered question, or one per
// selected choice for multi-select answers. Every choice of a multi-select
// answer carries the question-level verdict, not its own correctness.
func buildSubmissions(attemptID string, questions []domain.Question, answers map[string]domain.Answer, score domain.ScoreResult) []domain.AnswerSubmission {
	subs := make([]domain.AnswerSubmission, 0, len(answers))
	for _, q := range questions {
		answer, ok := answers[q.ID]
		if !ok || answer.Empty() {
			continue
		}
		verdict := false
		if qs, ok := score.Question(q.ID); ok && qs.IsCorrect != nil {
			verdict = *qs.IsCorrect
		}
		base := domain.AnswerSubmission{AttemptID: attemptID, QuestionID: q.ID, IsCorrect: verdict}

		switch answer.Kind {
		case domain.AnswerChoices:
			for _, choiceID := range answer.Choices {
				sub := base
				sub.ChoiceID = choiceID
				subs = append(subs, sub)
			}
		case domain.AnswerChoice:
			base.ChoiceID = answer.Choice
			subs = append(subs, base)
		case domain.AnswerText:
			base.AnswerText = answer.Text
			subs = append(subs, base)
		}
	}
	return subs
}

func (c *Controller) handleExpire() {
	if c.hooks.OnExpire != nil {
		c.hooks.OnExpire()
	}
	if c.State() != InProgress {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.autoSubmitTimeout)
		defer cancel()
		out, err := c.submit(ctx, TriggerTimeout)
		if out.Skipped {
			return
		}
		if c.hooks.OnAutoSubmit != nil {
			c.hooks.OnAutoSubmit(out, err)
		}
	}()
}

func (c *Controller) tick() {
	c.countdown.Tick()
	if remaining, ok := c.countdown.Remaining(); ok && c.hooks.OnTick != nil {
		c.hooks.OnTick(remaining)
	}
}

// Retry clears the ledger and returns a submitted attempt to NotStarted.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.state != Submitted {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("retry attempt: attempt is %s", state)
	}
	if c.quiz.AttemptsAllowed > 0 && c.started >= c.quiz.AttemptsAllowed {
		c.mu.Unlock()
		return domain.ErrAttemptsExhausted
	}
	c.ledger.Clear()
	c.attempt = domain.Attempt{}
	c.last = nil
	c.state = NotStarted
	c.mu.Unlock()

	c.notify(NotStarted)
	return nil
}

// Abandon ends an in-progress attempt without submitting it.
func (c *Controller) Abandon() {
	c.mu.Lock()
	if c.state != InProgress && c.state != NotStarted {
		c.mu.Unlock()
		return
	}
	c.stopTicksLocked()
	c.countdown.Stop()
	c.state = Abandoned
	c.mu.Unlock()

	c.notify(Abandoned)
}

func (c *Controller) startTicksLocked() {
	if _, limited := c.countdown.Remaining(); !limited {
		return
	}
	c.stopTicksLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.stopTicks = cancel
	c.cfg.scheduler.Every(ctx, c.cfg.tickInterval, c.tick)
}

func (c *Controller) stopTicksLocked() {
	if c.stopTicks != nil {
		c.stopTicks()
		c.stopTicks = nil
	}
}

func (c *Controller) notify(s State) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(s)
	}
}
