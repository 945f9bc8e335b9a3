package scoring

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"ielts-practice-engine/internal/domain"
)

// Thresholds map percentages to pass tiers.
type Thresholds struct {
	Excellent int
	Good      int
	Pass      int
}

// DefaultThresholds returns the tiers used when a quiz sets no passing percentage.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 85, Good: 70, Pass: 50}
}

// Classify returns the tier for a percentage.
func (t Thresholds) Classify(percentage int) domain.PassTier {
	switch {
	case percentage >= t.Excellent:
		return domain.TierExcellent
	case percentage >= t.Good:
		return domain.TierGood
	case percentage >= t.Pass:
		return domain.TierPass
	default:
		return domain.TierFail
	}
}

// WithPassMark returns a copy with the pass threshold replaced when mark > 0.
func (t Thresholds) WithPassMark(mark int) Thresholds {
	if mark > 0 {
		t.Pass = mark
	}
	return t
}

// grader decides whether an answer is correct for one question type.
type grader func(q domain.Question, a domain.Answer) bool

// Engine scores an answer set against a question set. It holds no mutable
// state, so Score is safe to call concurrently and always returns the same
// result for the same inputs.
type Engine struct {
	thresholds Thresholds
	graders    map[domain.QuestionType]grader
}

func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{
		thresholds: thresholds,
		graders: map[domain.QuestionType]grader{
			domain.SingleChoice:   gradeSingle,
			domain.TrueFalse:      gradeSingle,
			domain.MultipleChoice: gradeMultiple,
			domain.ShortText:      gradeShortText,
		},
	}
}

// Score evaluates every question. Results are ordered by position, ties kept in input order.
func (e *Engine) Score(questions []domain.Question, answers map[string]domain.Answer) domain.ScoreResult {
	return e.ScoreWithPassMark(questions, answers, 0)
}

// ScoreWithPassMark is Score with a quiz-specific pass threshold.
func (e *Engine) ScoreWithPassMark(questions []domain.Question, answers map[string]domain.Answer, passMark int) domain.ScoreResult {
	ordered := make([]domain.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	res := domain.ScoreResult{
		EarnedPoints: decimal.Zero,
		TotalPoints:  decimal.Zero,
		Questions:    make([]domain.QuestionScore, 0, len(ordered)),
	}
	for _, q := range ordered {
		points := q.Points
		if points.IsNegative() {
			points = decimal.Zero
		}
		qs := domain.QuestionScore{QuestionID: q.ID, Earned: decimal.Zero, Points: points}

		grade, ok := e.graders[q.Type]
		if !ok {
			// Externally graded; stays out of the totals.
			res.Questions = append(res.Questions, qs)
			continue
		}

		answer, answered := answers[q.ID]
		correct := answered && !answer.Empty() && grade(q, answer)
		qs.IsCorrect = &correct

		res.TotalCount++
		res.TotalPoints = res.TotalPoints.Add(points)
		if correct {
			res.CorrectCount++
			qs.Earned = points
			res.EarnedPoints = res.EarnedPoints.Add(points)
		}
		res.Questions = append(res.Questions, qs)
	}

	res.Percentage = Percentage(res.EarnedPoints, res.TotalPoints)
	res.Tier = e.thresholds.WithPassMark(passMark).Classify(res.Percentage)
	return res
}

// Percentage is round(earned/total*100), or 0 when total is not positive.
func Percentage(earned, total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(earned.Mul(decimal.NewFromInt(100)).Div(total).Round(0).IntPart())
}

// IsCorrect grades a single answer with the engine's rules.
func (e *Engine) IsCorrect(q domain.Question, a domain.Answer) bool {
	grade, ok := e.graders[q.Type]
	return ok && !a.Empty() && grade(q, a)
}

func gradeSingle(q domain.Question, a domain.Answer) bool {
	selected := a.Choice
	if a.Kind == domain.AnswerChoices {
		if len(a.Choices) != 1 {
			return false
		}
		selected = a.Choices[0]
	}
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c.ID == selected
		}
	}
	return false
}

// gradeMultiple is all-or-nothing: the selection must equal the correct set.
func gradeMultiple(q domain.Question, a domain.Answer) bool {
	selected := a.Choices
	if a.Kind == domain.AnswerChoice {
		selected = []string{a.Choice}
	}
	correct := make(map[string]struct{})
	for _, c := range q.Choices {
		if c.IsCorrect {
			correct[c.ID] = struct{}{}
		}
	}
	return setEqual(correct, toSet(selected))
}

func gradeShortText(q domain.Question, a domain.Answer) bool {
	given := normalize(a.Text)
	if given == "" {
		return false
	}
	for _, accepted := range q.AcceptedAnswers {
		if normalize(accepted) == given {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
