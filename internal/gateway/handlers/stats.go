package handlers

import (
	"net/http"

	"conductor/internal/executor"
	"conductor/internal/storage"
)

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Tools []executor.UsageStat `json:"tools"`
	Total int                  `json:"total_calls"`
}

// GetStats handles GET /api/v1/stats.
func (a *API) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Tools: []executor.UsageStat{}}
	if a.Stats != nil {
		resp.Tools = a.Stats.Stats()
	}
	for _, s := range resp.Tools {
		resp.Total += s.Count
	}
	SendJSON(w, http.StatusOK, resp)
}

// ClearStats handles DELETE /api/v1/stats.
func (a *API) ClearStats(w http.ResponseWriter, r *http.Request) {
	if a.Stats != nil {
		a.Stats.ClearStats()
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /api/v1/stats/history, newest last.
func (a *API) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := []executor.Result{}
	if a.Stats != nil {
		history = append(history, a.Stats.History()...)
	}
	if limit := queryInt(r, "limit", 0); limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	SendJSON(w, http.StatusOK, map[string]any{"history": history})
}

// GetUsage handles GET /api/v1/usage from persisted executions.
func (a *API) GetUsage(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	usage, err := a.Store.UsageSummary(r.Context())
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if usage == nil {
		usage = []storage.ToolUsage{}
	}
	SendJSON(w, http.StatusOK, map[string]any{"usage": usage})
}

// ListExecutions handles GET /api/v1/executions.
func (a *API) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	q := r.URL.Query()
	filter := storage.ExecutionFilter{
		Tool:           q.Get("tool"),
		ConversationID: q.Get("conversation_id"),
		ErrorsOnly:     q.Get("errors") == "true",
		Limit:          queryInt(r, "limit", 100),
	}
	execs, err := a.Store.ListExecutions(r.Context(), filter)
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if execs == nil {
		execs = []storage.Execution{}
	}
	SendJSON(w, http.StatusOK, map[string]any{"executions": execs})
}

// ClearExecutions handles DELETE /api/v1/executions.
func (a *API) ClearExecutions(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	n, err := a.Store.ClearExecutions(r.Context())
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, map[string]any{"deleted": n})
}
