package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/storyteller/internal/identity"
	"github.com/abhisek/storyteller/internal/performance"
	"github.com/abhisek/storyteller/internal/store"
)

type conversationView struct {
	ID           int64     `json:"id"`
	ThreadID     string    `json:"thread_id"`
	HasWrong     bool      `json:"has_wrong"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type turnView struct {
	ID         int64     `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Correct    *bool     `json:"correct,omitempty"`
	Difficulty string    `json:"difficulty,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	convs, err := h.conversations.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("list conversations", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	out := make([]conversationView, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationView{
			ID:           c.ID,
			ThreadID:     c.ThreadID,
			HasWrong:     c.HasWrong,
			CreatedAt:    c.CreatedAt,
			LastActivity: c.LastActivity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (h *handler) turns(w http.ResponseWriter, r *http.Request) {
	turns, ok := h.ownedTurns(w, r)
	if !ok {
		return
	}
	out := make([]turnView, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnView{
			ID:         t.ID,
			Role:       t.Role,
			Content:    t.Content,
			Correct:    t.Correct,
			Difficulty: t.Difficulty,
			CreatedAt:  t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": out})
}

func (h *handler) performance(w http.ResponseWriter, r *http.Request) {
	turns, ok := h.ownedTurns(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, performance.FromTurns(turns))
}

// ownedTurns loads the turns of the conversation in the URL when it
// belongs to the caller. Conversations of other users read as not found.
func (h *handler) ownedTurns(w http.ResponseWriter, r *http.Request) ([]store.Turn, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return nil, false
	}
	conv, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		h.log.Error("load conversation", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return nil, false
	}
	if conv == nil || conv.UserID != identity.UserIDFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	turns, err := h.conversations.Turns(r.Context(), id)
	if err != nil {
		h.log.Error("load turns", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load turns")
		return nil, false
	}
	return turns, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": message}})
}
