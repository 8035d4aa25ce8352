package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/koopa0/kiosk/internal/assistant"
)

// maxQueryBody bounds the request body read for POST /api/v1/query.
const maxQueryBody = 64 * 1024

// queryRequest is the inbound chat contract.
type queryRequest struct {
	Message string `json:"message"`
	Context struct {
		CustomerID string `json:"customer_id"`
		SessionID  string `json:"session_id"`
	} `json:"context"`
}

// queryResponse is the outbound contract the storefront UI consumes.
type queryResponse struct {
	Message        string `json:"message"`
	UIComponents   any    `json:"ui_components,omitempty"`
	LayoutStrategy string `json:"layout_strategy,omitempty"`
	UserIntent     string `json:"user_intent,omitempty"`
	TraceID        string `json:"trace_id"`
	SessionID      string `json:"session_id"`
}

type queryHandler struct {
	assistant QueryProcessor
	logger    *slog.Logger
}

// processQuery handles POST /api/v1/query.
func (h *queryHandler) processQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "reading request body", h.logger)
		return
	}

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}

	var sessionID uuid.UUID
	if req.Context.SessionID != "" {
		sessionID, err = uuid.Parse(req.Context.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "session_id must be a UUID", h.logger)
			return
		}
	}

	resp, err := h.assistant.ProcessQuery(r.Context(), assistant.Request{
		Message:    req.Message,
		CustomerID: req.Context.CustomerID,
		SessionID:  sessionID,
	})
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "bad_request", "message is required", h.logger)
		return
	case err != nil:
		h.logger.Error("process query failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "processing query", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Message:        resp.Message,
		UIComponents:   orNil(resp.UIComponents),
		LayoutStrategy: resp.LayoutStrategy,
		UserIntent:     resp.UserIntent,
		TraceID:        resp.TraceID,
		SessionID:      resp.SessionID.String(),
	})
}

// orNil keeps empty component lists out of the JSON entirely.
func orNil[T any](s []T) any {
	if len(s) == 0 {
		return nil
	}
	return s
}
