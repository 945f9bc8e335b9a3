package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"ielts-practice-engine/internal/api"
	"ielts-practice-engine/internal/app"
	"ielts-practice-engine/internal/attempt"
	"ielts-practice-engine/internal/config"
	"ielts-practice-engine/internal/domain"
	"ielts-practice-engine/internal/infra/memory"
	pgloader "ielts-practice-engine/internal/infra/postgres"
	rediscache "ielts-practice-engine/internal/infra/redis"
	"ielts-practice-engine/internal/playback"
	"ielts-practice-engine/internal/scoring"
	"ielts-practice-engine/internal/transcript"
	transport "ielts-practice-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.API.BaseURL == "" {
		return errors.New("api base_url not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	client, err := api.New(cfg.APIConfig())
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuizLoader
	switch cfg.QuizSource() {
	case "postgres":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewQuizLoader(pool)
	case "api":
		loader = client
	case "static":
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
	default:
		return fmt.Errorf("unknown quiz source %q", cfg.Quiz.Source)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var transcripts transcript.Source = client
	var store app.SessionRepository
	if redisClient != nil {
		quizRepo = rediscache.NewQuizRepository(redisClient, loader, quizTTL)
		transcripts = rediscache.NewTranscriptCache(redisClient, client, config.TTLDuration(cfg.Review.TranscriptTTL, time.Hour))
		store = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		store = memory.NewSessionStore()
	}

	service := app.NewPracticeService(store, quizRepo, client, transcripts,
		app.WithScorer(scoring.NewEngine(cfg.Thresholds())),
		app.WithAttemptOptions(
			attempt.WithTickInterval(config.TTLDuration(cfg.Attempt.TickInterval, time.Second)),
			attempt.WithSubmitConcurrency(cfg.Attempt.SubmitConcurrency),
			attempt.WithAutoSubmitTimeout(config.TTLDuration(cfg.Attempt.AutoSubmitTimeout, 30*time.Second)),
		),
		app.WithPlaybackOptions(
			playback.WithSuppressionWindow(config.TTLDuration(cfg.Review.ScrollSuppression, playback.DefaultScrollSuppression)),
		),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, transport.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting practice engine on :%s (quiz source %s)", finalPort, cfg.QuizSource())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes is a small offline question bank for local runs.
func sampleQuizzes() map[string]domain.Quiz {
	one := decimal.NewFromInt(1)
	return map[string]domain.Quiz{
		"listening-1": {
			ID:               "listening-1",
			Title:            "Listening Section 1: Booking a tour",
			TimeLimitSeconds: 600,
			TranscriptURL:    "/media/listening-1.vtt",
			Questions: []domain.Question{
				{
					ID:       "q1",
					Type:     domain.SingleChoice,
					Prompt:   "Which tour does the caller choose?",
					Position: 1,
					Points:   one,
					Choices: []domain.Choice{
						{ID: "a", Text: "Harbour cruise"},
						{ID: "b", Text: "City walking tour", IsCorrect: true},
						{ID: "c", Text: "Wine country day trip"},
					},
				},
				{
					ID:       "q2",
					Type:     domain.MultipleChoice,
					Prompt:   "Which TWO items are included in the price?",
					Position: 2,
					Points:   one,
					Choices: []domain.Choice{
						{ID: "a", Text: "Lunch", IsCorrect: true},
						{ID: "b", Text: "Hotel pickup"},
						{ID: "c", Text: "Museum entry", IsCorrect: true},
						{ID: "d", Text: "Souvenir photo"},
					},
				},
				{
					ID:              "q3",
					Type:            domain.ShortText,
					Prompt:          "The tour starts at the ________ gate.",
					Position:        3,
					Points:          one,
					AcceptedAnswers: []string{"north", "northern"},
				},
				{
					ID:       "q4",
					Type:     domain.TrueFalse,
					Prompt:   "Children under five travel free.",
					Position: 4,
					Points:   one,
					Choices: []domain.Choice{
						{ID: "true", Text: "True", IsCorrect: true},
						{ID: "false", Text: "False"},
					},
				},
			},
		},
	}
}
