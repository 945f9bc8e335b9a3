package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"ielts-practice-engine/internal/domain"
	"ielts-practice-engine/internal/playback"
	"ielts-practice-engine/internal/transcript"
)

// ErrDiscarded is returned when a load finished after its view was closed or reopened.
var ErrDiscarded = errors.New("review load discarded")

// ResultSource fetches the authoritative attempt result.
type ResultSource interface {
	GetAttemptResult(ctx context.Context, attemptID string) (domain.AttemptResult, error)
}

// Review is a loaded attempt result with its listening transcript.
type Review struct {
	Result        domain.AttemptResult
	Cues          []domain.Cue
	TranscriptErr error
	Player        *playback.Synchronizer
}

// NoCues reports whether the transcript panel has nothing to show.
func (r *Review) NoCues() bool {
	return len(r.Cues) == 0
}

// Discrepancy is a question the local engine and the service graded differently.
type Discrepancy struct {
	QuestionID string `json:"questionId"`
	Local      *bool  `json:"local"`
	Remote     *bool  `json:"remote"`
}

type Reconciliation struct {
	Matches       bool            `json:"matches"`
	LocalEarned   decimal.Decimal `json:"localEarned"`
	RemoteEarned  decimal.Decimal `json:"remoteEarned"`
	Discrepancies []Discrepancy   `json:"discrepancies"`
}

// Reconcile compares the instant local score with the service's result.
// Questions the service did not report are skipped.
func (r *Review) Reconcile(local domain.ScoreResult) Reconciliation {
	remote := make(map[string]*bool, len(r.Result.QuestionResults))
	for _, qr := range r.Result.QuestionResults {
		remote[qr.QuestionID] = qr.IsCorrect
	}

	rec := Reconciliation{
		LocalEarned:   local.EarnedPoints,
		RemoteEarned:  r.Result.EarnedPoints,
		Discrepancies: make([]Discrepancy, 0),
	}
	for _, qs := range local.Questions {
		rv, ok := remote[qs.QuestionID]
		if !ok || sameVerdict(qs.IsCorrect, rv) {
			continue
		}
		rec.Discrepancies = append(rec.Discrepancies, Discrepancy{QuestionID: qs.QuestionID, Local: qs.IsCorrect, Remote: rv})
	}
	rec.Matches = len(rec.Discrepancies) == 0 && local.EarnedPoints.Equal(r.Result.EarnedPoints)
	return rec
}

func sameVerdict(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Loader fetches a result and its transcript concurrently.
type Loader struct {
	results     ResultSource
	transcripts transcript.Source
}

func NewLoader(results ResultSource, transcripts transcript.Source) *Loader {
	return &Loader{results: results, transcripts: transcripts}
}

// Load fails only when the result cannot be fetched. A transcript failure
// leaves the review with no cues and the error recorded.
func (l *Loader) Load(ctx context.Context, attemptID, transcriptURL string, opts ...playback.Option) (*Review, error) {
	rev := &Review{Cues: []domain.Cue{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := l.results.GetAttemptResult(gctx, attemptID)
		if err != nil {
			return fmt.Errorf("load attempt result: %w", err)
		}
		rev.Result = res
		return nil
	})
	if transcriptURL != "" && l.transcripts != nil {
		g.Go(func() error {
			raw, err := l.transcripts.GetTranscript(gctx, transcriptURL)
			if err != nil {
				rev.TranscriptErr = err
				log.Printf("review %s: transcript unavailable: %v", attemptID, err)
				return nil
			}
			rev.Cues = transcript.Parse(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rev.Player = playback.NewSynchronizer(rev.Cues, opts...)
	return rev, nil
}

// View owns the review shown to one user. Results of loads that were
// superseded by a newer Open, or that finish after Close, are discarded.
type View struct {
	loader *Loader

	mu      sync.Mutex
	gen     uint64
	closed  bool
	cancel  context.CancelFunc
	current *Review
}

func NewView(loader *Loader) *View {
	return &View{loader: loader}
}

func (v *View) Open(ctx context.Context, attemptID, transcriptURL string, opts ...playback.Option) (*Review, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrDiscarded
	}
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	gen := v.gen
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()
	defer cancel()

	rev, err := v.loader.Load(ctx, attemptID, transcriptURL, opts...)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.gen != gen {
		return nil, ErrDiscarded
	}
	v.cancel = nil
	if err != nil {
		return nil, err
	}
	v.current = rev
	return rev, nil
}

// Current returns the last applied review.
func (v *View) Current() (*Review, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.current != nil
}

// Close tears the view down and cancels any in-flight load.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.current = nil
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
