package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/storyteller/internal/dialogue"
	"github.com/abhisek/storyteller/internal/identity"
)

// chatRequest is the body of a chat turn.
type chatRequest struct {
	ThreadID       string `json:"thread_id,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Model          string `json:"model,omitempty"`
}

func (c chatRequest) turn(userID string) dialogue.TurnRequest {
	return dialogue.TurnRequest{
		ThreadID:       strings.TrimSpace(c.ThreadID),
		ConversationID: c.ConversationID,
		Message:        c.Message,
		UserID:         userID,
		Model:          strings.TrimSpace(c.Model),
	}
}

// chat streams one turn as server-sent events, one JSON event per
// "data:" line.
func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		defer h.metrics.StreamOpened()()
	}

	h.log.Info("chat turn",
		"user_id", userID,
		"thread_id", req.ThreadID,
		"message_length", len(req.Message),
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)

	for ev := range h.engine.HandleTurn(r.Context(), req.turn(userID)) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("encode chat event", "error", err)
			return
		}
		if err := writeSSE(w, data); err != nil {
			h.log.Warn("client went away mid-turn", "error", err, "user_id", userID)
			return
		}
		flusher.Flush()
	}
}

func writeSSE(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// chatWS runs turns over a WebSocket: each text message is a chat request
// and is answered by the turn's events, one JSON message each.
func (h *handler) chatWS(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.origins),
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err, "user_id", userID)
		return
	}
	defer ws.CloseNow()
	ws.SetReadLimit(h.maxBody)

	if h.metrics != nil {
		defer h.metrics.StreamOpened()()
	}

	ctx := r.Context()
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				h.log.Debug("websocket read ended", "error", err, "user_id", userID)
			}
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			ev := dialogue.Event{Type: dialogue.EventError, Message: "message is required"}
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				return
			}
			continue
		}
		for ev := range h.engine.HandleTurn(ctx, req.turn(userID)) {
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				h.log.Warn("client went away mid-turn", "error", err, "user_id", userID)
				return
			}
		}
	}
}

// originPatterns turns configured CORS origins into host patterns.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
