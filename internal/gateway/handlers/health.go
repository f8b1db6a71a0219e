package handlers

import (
	"net/http"
	"time"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend,omitempty"`
	Uptime  int64  `json:"uptime"`
	Tools   int    `json:"tools"`
	Storage string `json:"storage"` // enabled | disabled
}

// Health reports liveness along with what this server runs: the model
// backend, how many tools a default request can see and whether
// conversations are persisted.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: a.Version,
		Backend: a.Backend,
		Storage: "disabled",
	}
	if !a.Started.IsZero() {
		resp.Uptime = int64(time.Since(a.Started) / time.Second)
	}
	if a.Catalog != nil {
		resp.Tools = len(a.Catalog.ListTools(r.Context()))
	}
	if a.Store != nil {
		resp.Storage = "enabled"
	}
	SendJSON(w, http.StatusOK, resp)
}
