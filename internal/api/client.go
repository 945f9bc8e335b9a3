package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"ielts-practice-engine/internal/domain"
)

const maxTranscriptBytes = 4 << 20

// Config selects the remote API and how requests are authenticated.
// A client-credentials pair takes precedence over a static bearer token.
type Config struct {
	BaseURL      string
	Token        string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the Attempt/Quiz service over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	hc := base
	switch {
	case cfg.ClientID != "" && cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		hc = cc.Client(ctx)
		hc.Timeout = timeout
	case cfg.Token != "":
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}))
		hc.Timeout = timeout
	}
	return NewWithHTTPClient(cfg.BaseURL, hc)
}

// NewWithHTTPClient uses hc as the already-authenticated transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(u.String(), "/"), http: hc}, nil
}

type createAttemptRequest struct {
	UserID string `json:"userId"`
	QuizID string `json:"quizId"`
}

type createAttemptResponse struct {
	AttemptID string `json:"attemptId"`
}

func (c *Client) CreateAttempt(ctx context.Context, userID, quizID string) (string, error) {
	var resp createAttemptResponse
	path := "/quizzes/" + url.PathEscape(quizID) + "/attempts"
	if err := c.doJSON(ctx, "create attempt", http.MethodPost, path, createAttemptRequest{UserID: userID, QuizID: quizID}, &resp); err != nil {
		return "", err
	}
	if resp.AttemptID == "" {
		return "", errors.New("create attempt: response missing attemptId")
	}
	return resp.AttemptID, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) error {
	path := "/attempts/" + url.PathEscape(sub.AttemptID) + "/answers"
	return c.doJSON(ctx, "submit answer", http.MethodPost, path, sub, nil)
}

func (c *Client) FinalizeAttempt(ctx context.Context, attemptID string) error {
	path := "/attempts/" + url.PathEscape(attemptID) + "/finalize"
	return c.doJSON(ctx, "finalize attempt", http.MethodPost, path, struct{}{}, nil)
}

func (c *Client) GetAttemptResult(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	var res domain.AttemptResult
	path := "/attempts/" + url.PathEscape(attemptID) + "/result"
	if err := c.doJSON(ctx, "get attempt result", http.MethodGet, path, nil, &res); err != nil {
		return domain.AttemptResult{}, err
	}
	if res.AttemptID == "" {
		res.AttemptID = attemptID
	}
	return res, nil
}

// GetQuiz fetches a quiz with its questions embedded.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.doJSON(ctx, "get quiz", http.MethodGet, "/quizzes/"+url.PathEscape(quizID), nil, &quiz)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// LoadQuiz lets the client back a quiz cache.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return c.GetQuiz(ctx, quizID)
}

// GetTranscript downloads caption-track text. Relative URLs resolve against the API base.
func (c *Client) GetTranscript(ctx context.Context, rawURL string) (string, error) {
	target := rawURL
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		target = c.baseURL + "/" + strings.TrimPrefix(rawURL, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("get transcript: %w", err)
	}
	req.Header.Set("Accept", "text/vtt, text/plain")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", statusError("get transcript", resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
