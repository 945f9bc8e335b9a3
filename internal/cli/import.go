package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"ielts-practice-engine/internal/config"
	"ielts-practice-engine/internal/domain"
	pgloader "ielts-practice-engine/internal/infra/postgres"
)

// NewImportCmd loads quiz JSON files into the Postgres question bank.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import [quiz.json...]",
		Short: "Import quizzes into the question bank",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			bank := pgloader.NewQuizLoader(pool)

			for _, path := range args {
				quiz, err := readQuizFile(path)
				if err != nil {
					return err
				}
				if err := bank.SaveQuiz(cmd.Context(), quiz); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				log.Printf("imported quiz %s (%d questions)", quiz.ID, len(quiz.Questions))
			}
			return nil
		},
	}
}

func readQuizFile(path string) (domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("%s: %w", path, err)
	}
	if quiz.ID == "" {
		return domain.Quiz{}, fmt.Errorf("%s: quiz id missing", path)
	}
	return quiz, nil
}
