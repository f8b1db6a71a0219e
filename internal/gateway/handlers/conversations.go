package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"conductor/internal/storage"
)

// ListConversations handles GET /api/v1/conversations.
func (a *API) ListConversations(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	convs, err := a.Store.ListConversations(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if convs == nil {
		convs = []*storage.Conversation{}
	}
	SendJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// GetConversation handles GET /api/v1/conversations/{id}.
func (a *API) GetConversation(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	id := mux.Vars(r)["id"]
	c, err := a.Store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "conversation not found: "+id)
		return
	}
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	SendJSON(w, http.StatusOK, c)
}

// DeleteConversation handles DELETE /api/v1/conversations/{id}.
func (a *API) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	id := mux.Vars(r)["id"]
	err := a.Store.DeleteConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "conversation not found: "+id)
		return
	}
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
