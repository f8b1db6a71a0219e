package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"conductor/internal/tools"
)

// ToolInfo describes one tool for API clients.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Kind        tools.Kind     `json:"kind"`
	Mutating    bool           `json:"mutating"`
	Available   bool           `json:"available"`
	Usage       string         `json:"usage"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolsResponse is the body of GET /api/v1/tools.
type ToolsResponse struct {
	Mode  tools.Mode `json:"mode"`
	Tools []ToolInfo `json:"tools"`
}

// ListTools handles GET /api/v1/tools. The optional mode query marks
// mutating tools unavailable in ask mode.
func (a *API) ListTools(w http.ResponseWriter, r *http.Request) {
	mode := tools.ParseMode(r.URL.Query().Get("mode"))
	resp := ToolsResponse{Mode: mode, Tools: []ToolInfo{}}
	if a.Catalog != nil {
		for _, d := range a.Catalog.ListTools(r.Context()) {
			resp.Tools = append(resp.Tools, toolInfo(d, mode))
		}
	}
	SendJSON(w, http.StatusOK, resp)
}

// GetTool handles GET /api/v1/tools/{name}. Hidden tools (search while
// disabled) are reported as not found.
func (a *API) GetTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if a.Catalog == nil {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "tool not found: "+name)
		return
	}
	d, ok := a.Catalog.Describe(r.Context(), name)
	if !ok {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "tool not found: "+name)
		return
	}
	SendJSON(w, http.StatusOK, toolInfo(d, tools.ParseMode(r.URL.Query().Get("mode"))))
}

func toolInfo(d tools.Descriptor, mode tools.Mode) ToolInfo {
	return ToolInfo{
		Name:        d.Name,
		Description: d.Description,
		Kind:        d.Kind,
		Mutating:    d.Kind.Mutating(),
		Available:   mode.AllowsWrite() || !d.Kind.Mutating(),
		Usage:       d.Usage(),
		Parameters:  d.JSONSchema(),
	}
}
