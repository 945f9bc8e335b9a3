package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"ielts-practice-engine/internal/app"
	"ielts-practice-engine/internal/domain"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the websocket endpoint, health check and the read-only JSON API.
func NewRouter(service *app.PracticeService, cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", NewWSHandler(service).ServeWS)

	api := &apiHandler{service: service}
	r.Route("/api", func(ar chi.Router) {
		ar.Use(middleware.Timeout(timeout))
		ar.Get("/quizzes/{quizID}", api.getQuiz)
		ar.Get("/sessions/{userID}", api.getSession)
	})
	return r
}

type apiHandler struct {
	service *app.PracticeService
}

func (h *apiHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.PreviewQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *apiHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session.Snapshot())
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	}
	respondJSON(w, status, app.ErrorPayload{Message: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
