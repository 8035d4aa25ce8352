package api

import (
	"log/slog"
	"net/http"
)

type strategyHandler struct {
	source StrategySource
	logger *slog.Logger
}

// strategySummary lists a loaded strategy without its parsed internals.
type strategySummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Conditions []string `json:"conditions"`
	Actions    int      `json:"actions"`
}

// listStrategies handles GET /api/v1/strategies.
func (h *strategyHandler) listStrategies(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Strategies()
	out := make([]strategySummary, len(snap))
	for i, s := range snap {
		out[i] = strategySummary{
			ID:         s.ID,
			Name:       s.Name,
			Conditions: s.Conditions,
			Actions:    len(s.Actions),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": out})
}

// reloadStrategies handles POST /api/v1/strategies/reload. A failed reload
// keeps the prior snapshot serving and reports the document defect.
func (h *strategyHandler) reloadStrategies(w http.ResponseWriter, r *http.Request) {
	if err := h.source.Reload(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_document", err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"strategies": len(h.source.Strategies()),
	})
}
