package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"ielts-practice-engine/internal/app"
	"ielts-practice-engine/internal/domain"
	"ielts-practice-engine/internal/review"
)

type WSHandler struct {
	service  *app.PracticeService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PracticeService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId"`
}

type textPayload struct {
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
}

type timePayload struct {
	Time float64 `json:"time"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type progressPayload struct {
	QuestionID string        `json:"questionId"`
	Answer     domain.Answer `json:"answer"`
	Answered   int           `json:"answered"`
	Total      int           `json:"total"`
	Percent    int           `json:"percent"`
}

type reviewPayload struct {
	Result          domain.AttemptResult  `json:"result"`
	Cues            []domain.Cue          `json:"cues"`
	TranscriptError string                `json:"transcriptError,omitempty"`
	Reconciliation  review.Reconciliation `json:"reconciliation"`
	Playback        domain.PlaybackState  `json:"playback"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and drives one practice session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.service.Open(ctx, userID, quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[app.ErrorPayload]{Type: "error", Payload: app.ErrorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Leave(session)

	events, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: session.Snapshot()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(ctx, session, inbound); ok {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// handle applies one inbound message. State changes, ticks and submission
// summaries reach the client through the session's event stream.
func (h *WSHandler) handle(ctx context.Context, session *app.Session, in inboundMessage) (outboundMessage[any], bool) {
	ctrl := session.Controller
	switch in.Type {
	case "start":
		if err := ctrl.Start(ctx); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{}, false

	case "select":
		var p selectPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(errors.New("invalid select payload")), true
		}
		answer, err := ctrl.SelectChoice(p.QuestionID, p.ChoiceID)
		if err != nil {
			return errorMessage(err), true
		}
		return progressMessage(session, p.QuestionID, answer), true

	case "text":
		var p textPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(errors.New("invalid text payload")), true
		}
		if err := ctrl.SetText(p.QuestionID, p.Text); err != nil {
			return errorMessage(err), true
		}
		answer, _ := ctrl.Ledger().Answer(p.QuestionID)
		return progressMessage(session, p.QuestionID, answer), true

	case "submit":
		if _, err := h.service.Submit(ctx, session.UserID); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{}, false

	case "retry":
		if err := ctrl.Retry(); err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{}, false

	case "review":
		rev, rec, err := h.service.Review(ctx, session.UserID)
		if err != nil {
			return errorMessage(err), true
		}
		payload := reviewPayload{
			Result:         rev.Result,
			Cues:           rev.Cues,
			Reconciliation: rec,
			Playback:       rev.Player.State(),
		}
		if rev.TranscriptErr != nil {
			payload.TranscriptError = rev.TranscriptErr.Error()
		}
		return outboundMessage[any]{Type: "review", Payload: payload}, true
	}

	return h.handlePlayback(session, in)
}

func (h *WSHandler) handlePlayback(session *app.Session, in inboundMessage) (outboundMessage[any], bool) {
	switch in.Type {
	case "playback", "scroll", "seek", "jump", "play", "pause":
	default:
		return errorMessage(errors.New("unsupported message type")), true
	}
	rev, ok := session.Review()
	if !ok {
		return errorMessage(domain.ErrAttemptNotSubmitted), true
	}
	player := rev.Player

	switch in.Type {
	case "playback":
		var p timePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(errors.New("invalid playback payload")), true
		}
		player.Update(p.Time)
		return outboundMessage[any]{}, false
	case "scroll":
		player.UserScrolled()
		return outboundMessage[any]{}, false
	case "seek":
		var p timePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(errors.New("invalid seek payload")), true
		}
		player.SeekTo(p.Time)
	case "jump":
		var p jumpPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errorMessage(errors.New("invalid jump payload")), true
		}
		if _, err := player.JumpTo(p.Index); err != nil {
			return errorMessage(err), true
		}
	case "play":
		player.Play()
	case "pause":
		player.Pause()
	}
	return outboundMessage[any]{Type: "playback", Payload: player.State()}, true
}

func progressMessage(session *app.Session, questionID string, answer domain.Answer) outboundMessage[any] {
	p := session.Controller.Progress()
	return outboundMessage[any]{Type: "progress", Payload: progressPayload{
		QuestionID: questionID,
		Answer:     answer,
		Answered:   p.Answered,
		Total:      p.Total,
		Percent:    p.Percent,
	}}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: app.ErrorPayload{Message: err.Error()}}
}
