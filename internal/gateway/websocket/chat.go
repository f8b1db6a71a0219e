package websocket

import (
	"context"
	"errors"
	"net/http"

	"conductor/internal/provider"
	"conductor/internal/runner"
	"conductor/internal/storage"
	"conductor/internal/tools"
	"conductor/pkg/logger"
)

// Runner runs one conversation.
type Runner interface {
	Run(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// ConversationStore persists finished conversations.
type ConversationStore interface {
	SaveConversation(ctx context.Context, c *storage.Conversation) error
}

// NewChatHandler returns a ChatHandler that runs each chat frame as a
// conversation whose id is the session. The final result, or an error
// frame, is the only frame it emits; transitions reach clients through
// PublishEvent. ctx bounds every conversation. store may be nil.
func NewChatHandler(ctx context.Context, r Runner, store ConversationStore) ChatHandler {
	return func(sessionID string, msg WSMessage) (<-chan []byte, error) {
		if r == nil {
			return nil, errors.New("no runner configured")
		}
		req := runner.Request{
			Message:        msg.Message,
			Mode:           tools.ParseMode(msg.Mode),
			Context:        msg.Context,
			ConversationID: sessionID,
		}

		out := make(chan []byte, 1)
		go func() {
			defer close(out)
			runCtx := storage.WithConversationID(ctx, sessionID)
			res, err := r.Run(runCtx, req)
			if err != nil {
				logger.Warn().Err(err).Str("session", sessionID).Msg("Chat failed")
				out <- errorFrame(sessionID, chatErrorCode(err), err.Error())
				return
			}
			if store != nil {
				if err := saveConversation(runCtx, store, req, res); err != nil {
					logger.Warn().Err(err).Str("conversation_id", sessionID).Msg("Failed to save conversation")
				}
			}
			data, err := Encode(TypeResult, sessionID, res)
			if err != nil {
				out <- errorFrame(sessionID, "INTERNAL_ERROR", err.Error())
				return
			}
			out <- data
		}()
		return out, nil
	}
}

func saveConversation(ctx context.Context, store ConversationStore, req runner.Request, res *runner.Result) error {
	c, err := storage.NewConversation(req, res)
	if err != nil {
		return err
	}
	return store.SaveConversation(ctx, c)
}

func chatErrorCode(err error) string {
	switch {
	case errors.Is(err, runner.ErrEmptyMessage):
		return "INVALID_REQUEST"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	}
	switch provider.StatusCode(err) {
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	}
	return "BAD_GATEWAY"
}
