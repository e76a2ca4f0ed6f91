// Package ws exposes the quiz over a websocket, which makes it possible
// to exercise the full conversation locally without Telegram
// credentials.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/H-SG/telegram-quizbot/internal/domain"
	"github.com/H-SG/telegram-quizbot/internal/quiz"
)

type Handler struct {
	engine   *quiz.Engine
	log      zerolog.Logger
	locks    *quiz.UserLocks
	upgrader websocket.Upgrader
}

func NewHandler(engine *quiz.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("transport", "ws").Logger(),
		locks:  quiz.NewUserLocks(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServeWS upgrades the request and runs the conversation loop. Events
// arrive as {"type": "start"|"answer"|"help"|"cancel", "text": "..."}
// and replies go out as {"text": "...", "choices": [...]}.
//
// The playground does not enforce the per-question timer; it exists to
// poke at the state machine interactively.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	state := quiz.StateIdle
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		ev, ok := toEvent(inbound)
		if !ok {
			if err := conn.WriteJSON(quiz.Reply{Text: "unsupported message type"}); err != nil {
				return
			}
			continue
		}

		next, replies, err := h.step(r.Context(), userID, state, ev)
		if err != nil {
			var inv *domain.InvariantError
			if errors.As(err, &inv) {
				h.log.Error().Err(inv).Int64("user", userID).Msg("session invariant violated, closing conversation")
				_ = conn.WriteJSON(quiz.Reply{Text: "internal error, conversation closed"})
				return
			}
			h.log.Error().Err(err).Int64("user", userID).Msg("transition failed")
			continue
		}

		state = next
		for _, reply := range replies {
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}

// step holds the user lock across the read-step-write cycle; the same
// user connected twice still gets serialized transitions.
func (h *Handler) step(ctx context.Context, userID int64, state quiz.State, ev quiz.Event) (quiz.State, []quiz.Reply, error) {
	unlock := h.locks.Lock(userID)
	defer unlock()
	return h.engine.Step(ctx, userID, state, ev)
}

func toEvent(m inboundMessage) (quiz.Event, bool) {
	switch m.Type {
	case "start":
		return quiz.Event{Kind: quiz.EventStart}, true
	case "answer":
		return quiz.Event{Kind: quiz.EventAnswer, Text: m.Text}, true
	case "help":
		return quiz.Event{Kind: quiz.EventHelp}, true
	case "cancel":
		return quiz.Event{Kind: quiz.EventCancel}, true
	default:
		return quiz.Event{}, false
	}
}
