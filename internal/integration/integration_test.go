package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"ielts-practice-engine/internal/api"
	"ielts-practice-engine/internal/app"
	"ielts-practice-engine/internal/domain"
	pgloader "ielts-practice-engine/internal/infra/postgres"
	pgmigrations "ielts-practice-engine/internal/infra/postgres/migrations"
	infraredis "ielts-practice-engine/internal/infra/redis"
)

func TestPracticeAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	bank := pgloader.NewQuizLoader(pool)
	if err := bank.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	remote := newRemoteService(t)
	client, err := api.NewWithHTTPClient(remote.server.URL, remote.server.Client())
	if err != nil {
		t.Fatalf("api client: %v", err)
	}

	quizRepo := infraredis.NewQuizRepository(redisClient, bank, 5*time.Minute)
	transcripts := infraredis.NewTranscriptCache(redisClient, client, time.Hour)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewPracticeService(sessionStore, quizRepo, client, transcripts)

	session, err := service.Open(ctx, "u1", "listening-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n, _ := redisClient.Exists(ctx, "quiz:listening-1").Result(); n != 1 {
		t.Fatalf("expected quiz cached in redis")
	}

	ctrl := session.Controller
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.SelectChoice("q1", "b"); err != nil {
		t.Fatalf("select q1: %v", err)
	}
	for _, choice := range []string{"a", "c"} {
		if _, err := ctrl.SelectChoice("q2", choice); err != nil {
			t.Fatalf("select q2: %v", err)
		}
	}

	out, err := service.Submit(ctx, "u1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Score.CorrectCount != 2 || out.Score.TotalCount != 3 || out.Score.Percentage != 67 {
		t.Fatalf("unexpected score %+v", out.Score)
	}
	if got := remote.answerCount(); got != 3 {
		t.Fatalf("expected 3 answer submissions (one per selected choice), got %d", got)
	}

	rev, rec, err := service.Review(ctx, "u1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(rev.Cues) != 2 || !rec.Matches {
		t.Fatalf("unexpected review cues=%d reconciliation=%+v", len(rev.Cues), rec)
	}
	if idx := rev.Player.Update(3); idx != 1 {
		t.Fatalf("expected second cue active at 3s, got %d", idx)
	}
}

// remoteService is a minimal Attempt/Quiz API that grades with the flags it receives.
type remoteService struct {
	server *httptest.Server

	mu      sync.Mutex
	answers map[string][]domain.AnswerSubmission
}

func newRemoteService(t *testing.T) *remoteService {
	t.Helper()
	rs := &remoteService{answers: make(map[string][]domain.AnswerSubmission)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /quizzes/{quizId}/attempts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"attemptId": "att-1"})
	})
	mux.HandleFunc("POST /attempts/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
		var sub domain.AnswerSubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		rs.mu.Lock()
		rs.answers[sub.QuestionID] = append(rs.answers[sub.QuestionID], sub)
		rs.mu.Unlock()
	})
	mux.HandleFunc("POST /attempts/{id}/finalize", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /attempts/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		res := domain.AttemptResult{AttemptID: r.PathValue("id"), EarnedPoints: decimal.Zero}
		for qid, subs := range rs.answers {
			correct := subs[0].IsCorrect
			if correct {
				res.EarnedPoints = res.EarnedPoints.Add(decimal.NewFromInt(1))
				res.CorrectAnswers++
			}
			res.QuestionResults = append(res.QuestionResults, domain.QuestionResult{QuestionID: qid, IsCorrect: &correct})
		}
		_ = json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("GET /media/listening-1.vtt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("WEBVTT\n\n00:00.000 --> 00:02.500\nGood morning, city tours.\n\n00:02.500 --> 00:06.000\nI'd like to book the walking tour.\n"))
	})
	rs.server = httptest.NewServer(mux)
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *remoteService) answerCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	n := 0
	for _, subs := range rs.answers {
		n += len(subs)
	}
	return n
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "ielts", "POSTGRES_PASSWORD": "ieltspass", "POSTGRES_DB": "questionbank"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://ielts:ieltspass@%s:%s/questionbank?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	one := decimal.NewFromInt(1)
	return domain.Quiz{
		ID:               "listening-1",
		Title:            "Listening Section 1",
		TimeLimitSeconds: 600,
		TranscriptURL:    "/media/listening-1.vtt",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Type:     domain.SingleChoice,
				Position: 1,
				Points:   one,
				Choices: []domain.Choice{
					{ID: "a", Text: "Harbour cruise"},
					{ID: "b", Text: "City walking tour", IsCorrect: true},
				},
			},
			{
				ID:       "q2",
				Type:     domain.MultipleChoice,
				Position: 2,
				Points:   one,
				Choices: []domain.Choice{
					{ID: "a", Text: "Lunch", IsCorrect: true},
					{ID: "b", Text: "Hotel pickup"},
					{ID: "c", Text: "Museum entry", IsCorrect: true},
				},
			},
			{
				ID:              "q3",
				Type:            domain.ShortText,
				Position:        3,
				Points:          one,
				AcceptedAnswers: []string{"north"},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
