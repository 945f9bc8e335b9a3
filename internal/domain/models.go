package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestionType selects the scoring rule applied to a question.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortText      QuestionType = "short_text"
)

// Choice represents a selectable option of a choice question.
type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is server-provided content and is never mutated client-side.
type Question struct {
	ID              string          `json:"id"`
	Type            QuestionType    `json:"type"`
	Prompt          string          `json:"prompt"`
	Points          decimal.Decimal `json:"points"`
	Position        int             `json:"position"`
	Choices         []Choice        `json:"choices,omitempty"`
	AcceptedAnswers []string        `json:"acceptedAnswers,omitempty"`
}

// Quiz is a timed collection of questions (a quiz or one IELTS test module).
type Quiz struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	TimeLimitSeconds  int        `json:"timeLimitSeconds"` // 0 means unlimited
	AttemptsAllowed   int        `json:"attemptsAllowed"`  // 0 means unlimited
	PassingPercentage int        `json:"passingPercentage,omitempty"`
	TranscriptURL     string     `json:"transcriptUrl,omitempty"`
	Questions         []Question `json:"questions"`
}

// AnswerKind tells which field of an Answer carries the value.
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerChoice
	AnswerChoices
	AnswerText
)

// Answer is the user's response to one question.
type Answer struct {
	Kind    AnswerKind `json:"kind"`
	Choice  string     `json:"choice,omitempty"`
	Choices []string   `json:"choices,omitempty"` // selection order
	Text    string     `json:"text,omitempty"`
}

func ChoiceAnswer(choiceID string) Answer {
	return Answer{Kind: AnswerChoice, Choice: choiceID}
}

func ChoicesAnswer(choiceIDs ...string) Answer {
	return Answer{Kind: AnswerChoices, Choices: append([]string(nil), choiceIDs...)}
}

func TextAnswer(text string) Answer {
	return Answer{Kind: AnswerText, Text: text}
}

// Empty reports whether the answer counts as unanswered.
func (a Answer) Empty() bool {
	switch a.Kind {
	case AnswerChoice:
		return a.Choice == ""
	case AnswerChoices:
		return len(a.Choices) == 0
	case AnswerText:
		return a.Text == ""
	default:
		return true
	}
}

// Attempt is one timed session against a quiz.
type Attempt struct {
	ID               string    `json:"id"`
	QuizID           string    `json:"quizId"`
	UserID           string    `json:"userId"`
	StartedAt        time.Time `json:"startedAt"`
	TimeLimitSeconds int       `json:"timeLimitSeconds"`
	AttemptsAllowed  int       `json:"attemptsAllowed"`
	Submitted        bool      `json:"submitted"`
}

// PassTier classifies a percentage score.
type PassTier string

const (
	TierExcellent PassTier = "excellent"
	TierGood      PassTier = "good"
	TierPass      PassTier = "pass"
	TierFail      PassTier = "fail"
)

// QuestionScore is the verdict for a single question. IsCorrect is nil when ungraded.
type QuestionScore struct {
	QuestionID string          `json:"questionId"`
	IsCorrect  *bool           `json:"isCorrect"`
	Earned     decimal.Decimal `json:"earned"`
	Points     decimal.Decimal `json:"points"`
}

// ScoreResult is recomputed from the ledger and question set, never persisted.
type ScoreResult struct {
	EarnedPoints decimal.Decimal `json:"earnedPoints"`
	TotalPoints  decimal.Decimal `json:"totalPoints"`
	CorrectCount int             `json:"correctCount"`
	TotalCount   int             `json:"totalCount"`
	Percentage   int             `json:"percentage"`
	Tier         PassTier        `json:"tier"`
	Questions    []QuestionScore `json:"questions"`
}

// Question returns the verdict for questionID.
func (r ScoreResult) Question(questionID string) (QuestionScore, bool) {
	for _, q := range r.Questions {
		if q.QuestionID == questionID {
			return q, true
		}
	}
	return QuestionScore{}, false
}

// AnswerSubmission is the payload of one remote "submit answer" call.
type AnswerSubmission struct {
	AttemptID  string `json:"attemptId"`
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId,omitempty"`
	AnswerText string `json:"answerText,omitempty"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Cue is a time-ranged transcript fragment, in seconds.
type Cue struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
}

// PlaybackState is the review player's position.
type PlaybackState struct {
	CurrentTime    float64 `json:"currentTime"`
	IsPlaying      bool    `json:"isPlaying"`
	ActiveCueIndex int     `json:"activeCueIndex"`
}

// QuestionResult is the authoritative per-question outcome from the remote service.
type QuestionResult struct {
	QuestionID    string          `json:"questionId"`
	UserAnswer    string          `json:"userAnswer"`
	CorrectAnswer string          `json:"correctAnswer"`
	IsCorrect     *bool           `json:"isCorrect"`
	Points        decimal.Decimal `json:"points"`
}

// WritingScore is assigned by an examiner; absent until graded.
type WritingScore struct {
	Band     float64 `json:"band"`
	Feedback string  `json:"feedback"`
}

type WritingAnswer struct {
	TaskID string        `json:"taskId"`
	Text   string        `json:"text"`
	Score  *WritingScore `json:"score"`
}

// AttemptResult is the remote "attempt result" response used by review.
type AttemptResult struct {
	AttemptID        string           `json:"attemptId"`
	EarnedPoints     decimal.Decimal  `json:"earnedPoints"`
	TotalPoints      decimal.Decimal  `json:"totalPoints"`
	CorrectAnswers   int              `json:"correctAnswers"`
	TotalQuestions   int              `json:"totalQuestions"`
	BandScore        *float64         `json:"bandScore"`
	TimeSpentMinutes int              `json:"timeSpentMinutes"`
	QuestionResults  []QuestionResult `json:"questionResults"`
	WritingAnswers   []WritingAnswer  `json:"writingAnswers"`
}
