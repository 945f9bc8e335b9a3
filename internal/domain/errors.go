package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a user has no open practice session.
	ErrSessionNotFound = errors.New("practice session not found")
	// ErrUnauthenticated is returned when an attempt is started without a user id.
	ErrUnauthenticated = errors.New("user id required to start an attempt")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a choice ID is not part of the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAttemptNotStarted is returned for answers or submits before Start.
	ErrAttemptNotStarted = errors.New("attempt not started")
	// ErrAttemptClosed is returned when answering after the attempt left InProgress.
	ErrAttemptClosed = errors.New("attempt is no longer accepting answers")
	// ErrAttemptsExhausted is returned when the quiz allows no further attempts.
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	// ErrFinalizeFailed wraps a failed finalize call; the attempt stays retryable.
	ErrFinalizeFailed = errors.New("failed to submit quiz")
	// ErrAttemptNotSubmitted is returned when a review is requested before submission.
	ErrAttemptNotSubmitted = errors.New("attempt not submitted")
	// ErrCueNotFound is returned when jumping to a cue index outside the track.
	ErrCueNotFound = errors.New("cue not found")
)
