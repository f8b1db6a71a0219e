package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"conductor/internal/executor"
	"conductor/internal/runner"
	"conductor/internal/storage"
	"conductor/internal/tools"
)

// Runner runs one conversation. *runner.Controller implements it.
type Runner interface {
	Run(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// Catalog lists tools. *tools.Catalog implements it.
type Catalog interface {
	ListTools(ctx context.Context) []tools.Descriptor
	Describe(ctx context.Context, name string) (tools.Descriptor, bool)
}

// Stats exposes in-memory executor bookkeeping. *executor.Executor
// implements it.
type Stats interface {
	Stats() []executor.UsageStat
	History() []executor.Result
	ClearStats()
}

// Store is the persistence the API reads from. *storage.DB implements it.
type Store interface {
	SaveConversation(ctx context.Context, c *storage.Conversation) error
	GetConversation(ctx context.Context, id string) (*storage.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*storage.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListExecutions(ctx context.Context, f storage.ExecutionFilter) ([]storage.Execution, error)
	UsageSummary(ctx context.Context) ([]storage.ToolUsage, error)
	ClearExecutions(ctx context.Context) (int64, error)
}

// API serves /api/v1. Store may be nil when persistence is disabled.
type API struct {
	Runner  Runner
	Catalog Catalog
	Stats   Stats
	Store   Store
	Version string
	Backend string
	Started time.Time
}

// Register mounts the routes on r.
func (a *API) Register(r *mux.Router) {
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/health", a.Health).Methods(http.MethodGet)
	v1.HandleFunc("/chat", a.Chat).Methods(http.MethodPost)
	v1.HandleFunc("/tools", a.ListTools).Methods(http.MethodGet)
	v1.HandleFunc("/tools/{name}", a.GetTool).Methods(http.MethodGet)

	v1.HandleFunc("/stats", a.GetStats).Methods(http.MethodGet)
	v1.HandleFunc("/stats", a.ClearStats).Methods(http.MethodDelete)
	v1.HandleFunc("/stats/history", a.GetHistory).Methods(http.MethodGet)

	v1.HandleFunc("/usage", a.GetUsage).Methods(http.MethodGet)
	v1.HandleFunc("/executions", a.ListExecutions).Methods(http.MethodGet)
	v1.HandleFunc("/executions", a.ClearExecutions).Methods(http.MethodDelete)

	v1.HandleFunc("/conversations", a.ListConversations).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}", a.GetConversation).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}", a.DeleteConversation).Methods(http.MethodDelete)
}

// requireStore answers 503 and returns false when persistence is off.
func (a *API) requireStore(w http.ResponseWriter) bool {
	if a.Store == nil {
		SendError(w, http.StatusServiceUnavailable, ErrCodeStorageDisabled, "persistence is disabled")
		return false
	}
	return true
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
