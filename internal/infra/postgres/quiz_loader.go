package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"ielts-practice-engine/internal/domain"
)

// QuizLoader reads the local question bank. Quiz settings are columns;
// questions are a JSONB array.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz domain.Quiz
		raw  []byte
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, time_limit_seconds, attempts_allowed, passing_percentage, transcript_url, questions
		FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.Title, &quiz.TimeLimitSeconds, &quiz.AttemptsAllowed, &quiz.PassingPercentage, &quiz.TranscriptURL, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if err := json.Unmarshal(raw, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return quiz, nil
}

// SaveQuiz inserts or replaces a quiz in the question bank.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if quiz.ID == "" {
		return errors.New("save quiz: missing id")
	}
	questions := quiz.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quizzes (id, title, time_limit_seconds, attempts_allowed, passing_percentage, transcript_url, questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			time_limit_seconds = EXCLUDED.time_limit_seconds,
			attempts_allowed = EXCLUDED.attempts_allowed,
			passing_percentage = EXCLUDED.passing_percentage,
			transcript_url = EXCLUDED.transcript_url,
			questions = EXCLUDED.questions,
			updated_at = now()`,
		quiz.ID, quiz.Title, quiz.TimeLimitSeconds, quiz.AttemptsAllowed, quiz.PassingPercentage, quiz.TranscriptURL, string(raw))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
