package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"ielts-practice-engine/internal/domain"
)

type fakeResults struct {
	gate   chan struct{}
	slowID string
	err    error
	result domain.AttemptResult
}

func (f *fakeResults) GetAttemptResult(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	if f.gate != nil && (f.slowID == "" || f.slowID == attemptID) {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.AttemptResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.AttemptResult{}, f.err
	}
	res := f.result
	res.AttemptID = attemptID
	return res, nil
}

type fakeTranscripts struct {
	raw string
	err error
}

func (f *fakeTranscripts) GetTranscript(context.Context, string) (string, error) {
	return f.raw, f.err
}

const track = "WEBVTT\n\n00:00.000 --> 00:05.000\nSection one.\n\n00:05.000 --> 00:10.000\nQuestion one.\n"

func TestLoadParsesTranscript(t *testing.T) {
	l := NewLoader(&fakeResults{result: domain.AttemptResult{CorrectAnswers: 3}}, &fakeTranscripts{raw: track})

	rev, err := l.Load(context.Background(), "att-1", "/media/track.vtt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rev.Result.AttemptID != "att-1" || rev.Result.CorrectAnswers != 3 {
		t.Fatalf("unexpected result %+v", rev.Result)
	}
	if len(rev.Cues) != 2 || rev.NoCues() {
		t.Fatalf("expected 2 cues, got %+v", rev.Cues)
	}
	if idx := rev.Player.Update(6); idx != 1 {
		t.Fatalf("expected player wired to cues, got %d", idx)
	}
}

func TestTranscriptFailureDegrades(t *testing.T) {
	l := NewLoader(&fakeResults{}, &fakeTranscripts{err: errors.New("404 not found")})

	rev, err := l.Load(context.Background(), "att-1", "/media/missing.vtt")
	if err != nil {
		t.Fatalf("transcript failure must not fail the review: %v", err)
	}
	if !rev.NoCues() || rev.TranscriptErr == nil {
		t.Fatalf("expected empty cue panel with recorded error, got %+v", rev)
	}
	if rev.Player.State().ActiveCueIndex != -1 {
		t.Fatalf("expected no active cue")
	}
}

func TestResultFailureFailsLoad(t *testing.T) {
	l := NewLoader(&fakeResults{err: errors.New("boom")}, nil)
	if _, err := l.Load(context.Background(), "att-1", ""); err == nil {
		t.Fatalf("expected result failure")
	}
}

func TestViewDiscardsResultAfterClose(t *testing.T) {
	results := &fakeResults{gate: make(chan struct{})}
	v := NewView(NewLoader(results, nil))

	done := make(chan error, 1)
	go func() {
		_, err := v.Open(context.Background(), "att-1", "")
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	v.Close()
	close(results.gate)

	select {
	case err := <-done:
		if !errors.Is(err, ErrDiscarded) {
			t.Fatalf("expected discarded load, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("open did not return")
	}
	if _, ok := v.Current(); ok {
		t.Fatalf("closed view must not hold a review")
	}
	if _, err := v.Open(context.Background(), "att-2", ""); !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected closed view to refuse loads, got %v", err)
	}
}

func TestViewNewerOpenSupersedesOlder(t *testing.T) {
	slow := &fakeResults{gate: make(chan struct{}), slowID: "att-old"}
	v := NewView(NewLoader(slow, nil))

	first := make(chan error, 1)
	go func() {
		_, err := v.Open(context.Background(), "att-old", "")
		first <- err
	}()
	time.Sleep(10 * time.Millisecond)

	rev, err := v.Open(context.Background(), "att-new", "")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if err := <-first; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected first load discarded, got %v", err)
	}
	cur, ok := v.Current()
	if !ok || cur != rev || cur.Result.AttemptID != "att-new" {
		t.Fatalf("expected newest review applied, got %+v", cur)
	}
}

func TestReconcile(t *testing.T) {
	yes, no := true, false
	rev := &Review{Result: domain.AttemptResult{
		EarnedPoints: decimal.NewFromInt(1),
		QuestionResults: []domain.QuestionResult{
			{QuestionID: "q1", IsCorrect: &yes},
			{QuestionID: "q2", IsCorrect: &yes},
		},
	}}
	local := domain.ScoreResult{
		EarnedPoints: decimal.NewFromInt(1),
		Questions: []domain.QuestionScore{
			{QuestionID: "q1", IsCorrect: &yes},
			{QuestionID: "q2", IsCorrect: &no},
			{QuestionID: "q3", IsCorrect: &no},
		},
	}

	rec := rev.Reconcile(local)
	if rec.Matches || len(rec.Discrepancies) != 1 || rec.Discrepancies[0].QuestionID != "q2" {
		t.Fatalf("expected q2 discrepancy, got %+v", rec)
	}

	local.Questions[1].IsCorrect = &yes
	if rec := rev.Reconcile(local); !rec.Matches {
		t.Fatalf("expected match, got %+v", rec)
	}
}
