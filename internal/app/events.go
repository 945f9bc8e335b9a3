package app

import (
	"github.com/shopspring/decimal"
	"ielts-practice-engine/internal/attempt"
	"ielts-practice-engine/internal/domain"
	"ielts-practice-engine/internal/ledger"
)

// EventType names the messages a session pushes to its subscribers.
type EventType string

const (
	EventState     EventType = "state"
	EventTick      EventType = "tick"
	EventExpired   EventType = "expired"
	EventSubmitted EventType = "submitted"
	EventCue       EventType = "cue"
	EventScroll    EventType = "scroll"
	EventError     EventType = "error"
)

type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type StatePayload struct {
	State     string `json:"state"`
	Remaining *int   `json:"remaining,omitempty"`
}

type TickPayload struct {
	Remaining int `json:"remaining"`
}

type CuePayload struct {
	Index int         `json:"index"`
	Cue   *domain.Cue `json:"cue,omitempty"`
}

type ScrollPayload struct {
	Index int `json:"index"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Summary is the instant result shown once an attempt is finalized.
type Summary struct {
	AttemptID     string                 `json:"attemptId"`
	Trigger       attempt.Trigger        `json:"trigger"`
	EarnedPoints  decimal.Decimal        `json:"earnedPoints"`
	TotalPoints   decimal.Decimal        `json:"totalPoints"`
	CorrectCount  int                    `json:"correctCount"`
	TotalCount    int                    `json:"totalCount"`
	Percentage    int                    `json:"percentage"`
	Tier          domain.PassTier        `json:"tier"`
	Band          float64                `json:"band"`
	FailedAnswers int                    `json:"failedAnswers"`
	Questions     []domain.QuestionScore `json:"questions"`
}

func NewSummary(out attempt.Outcome) Summary {
	return Summary{
		AttemptID:     out.Attempt.ID,
		Trigger:       out.Trigger,
		EarnedPoints:  out.Score.EarnedPoints,
		TotalPoints:   out.Score.TotalPoints,
		CorrectCount:  out.Score.CorrectCount,
		TotalCount:    out.Score.TotalCount,
		Percentage:    out.Score.Percentage,
		Tier:          out.Score.Tier,
		Band:          out.Band,
		FailedAnswers: out.Answers.Failed,
		Questions:     out.Score.Questions,
	}
}

// ChoiceView and QuestionView carry question content without answer keys.
type ChoiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID       string              `json:"id"`
	Type     domain.QuestionType `json:"type"`
	Prompt   string              `json:"prompt"`
	Points   decimal.Decimal     `json:"points"`
	Position int                 `json:"position"`
	Choices  []ChoiceView        `json:"choices,omitempty"`
}

type QuizView struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	TimeLimitSeconds int            `json:"timeLimitSeconds"`
	AttemptsAllowed  int            `json:"attemptsAllowed"`
	TranscriptURL    string         `json:"transcriptUrl,omitempty"`
	Questions        []QuestionView `json:"questions"`
}

// PublicQuiz strips correct flags and accepted answers from quiz content.
func PublicQuiz(q domain.Quiz) QuizView {
	view := QuizView{
		ID:               q.ID,
		Title:            q.Title,
		TimeLimitSeconds: q.TimeLimitSeconds,
		AttemptsAllowed:  q.AttemptsAllowed,
		TranscriptURL:    q.TranscriptURL,
		Questions:        make([]QuestionView, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		qv := QuestionView{
			ID:       question.ID,
			Type:     question.Type,
			Prompt:   question.Prompt,
			Points:   question.Points,
			Position: question.Position,
		}
		for _, c := range question.Choices {
			qv.Choices = append(qv.Choices, ChoiceView{ID: c.ID, Text: c.Text})
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}

// Snapshot is the full session state sent when a client connects.
type Snapshot struct {
	SessionID string                   `json:"sessionId"`
	Quiz      QuizView                 `json:"quiz"`
	State     string                   `json:"state"`
	Remaining *int                     `json:"remaining,omitempty"`
	Progress  ledger.Progress          `json:"progress"`
	Answers   map[string]domain.Answer `json:"answers"`
	Summary   *Summary                 `json:"summary,omitempty"`
}
