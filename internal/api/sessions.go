package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/koopa0/kiosk/internal/session"
)

type sessionHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// sessionView is the inspection payload: turns plus accumulated slots.
type sessionView struct {
	ID           string            `json:"id"`
	CustomerID   string            `json:"customer_id"`
	Slots        map[string]string `json:"slots"`
	Turns        []session.Turn    `json:"turns"`
	CreatedAt    string            `json:"created_at"`
	LastActiveAt string            `json:"last_active_at"`
}

// getSession handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Peek(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "loading session", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, sessionView{
		ID:           sess.ID.String(),
		CustomerID:   sess.CustomerID,
		Slots:        sess.Slots,
		Turns:        sess.Turns,
		CreatedAt:    sess.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		LastActiveAt: sess.LastActiveAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// deleteSession handles DELETE /api/v1/sessions/{id}.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	err := h.sessions.Delete(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found", h.logger)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "deleting session", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "session id must be a UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}
