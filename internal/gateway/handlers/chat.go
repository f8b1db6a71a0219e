package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"conductor/internal/provider"
	"conductor/internal/runner"
	"conductor/internal/storage"
	"conductor/internal/tools"
	"conductor/pkg/logger"
)

// Chat handles POST /api/v1/chat.
func (a *API) Chat(w http.ResponseWriter, r *http.Request) {
	var req runner.Request
	if err := DecodeJSON(r, &req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	req.Mode = tools.ParseMode(string(req.Mode))
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	ctx := storage.WithConversationID(r.Context(), req.ConversationID)
	res, err := a.Runner.Run(ctx, req)
	if err != nil {
		sendRunError(w, err)
		return
	}

	if a.Store != nil {
		if err := a.saveConversation(r, req, res); err != nil {
			log := logger.FromContext(r.Context())
			log.Warn().Err(err).Str("conversation_id", res.ConversationID).Msg("Failed to save conversation")
		}
	}
	SendJSON(w, http.StatusOK, res)
}

func (a *API) saveConversation(r *http.Request, req runner.Request, res *runner.Result) error {
	c, err := storage.NewConversation(req, res)
	if err != nil {
		return err
	}
	return a.Store.SaveConversation(r.Context(), c)
}

// sendRunError maps a runner failure to a status and error code.
func sendRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, runner.ErrEmptyMessage) {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "message is required")
		return
	}
	if errors.Is(err, runner.ErrNoBackend) {
		SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error())
		return
	}

	status := provider.StatusCode(err)
	switch status {
	case http.StatusServiceUnavailable:
		SendError(w, status, ErrCodeServiceUnavailable, err.Error())
	case http.StatusBadRequest:
		SendError(w, status, ErrCodeInvalidRequest, err.Error())
	default:
		SendError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	}
}
