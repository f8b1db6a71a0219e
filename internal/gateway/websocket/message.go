// Package websocket streams conversation events to connected clients.
package websocket

import "encoding/json"

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type    string          `json:"type"`
	Session string          `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
	Mode    string          `json:"mode,omitempty"`
	Context string          `json:"context,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeChat        = "chat"
	TypeEvent       = "event"
	TypeResult      = "result"
	TypeReload      = "reload"
	TypeError       = "error"
)

// Encode builds a frame of msgType carrying payload as data.
func Encode(msgType, session string, payload any) ([]byte, error) {
	msg := WSMessage{Type: msgType, Session: session}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return json.Marshal(msg)
}

func errorFrame(session, code, message string) []byte {
	data, _ := json.Marshal(WSMessage{
		Type:    TypeError,
		Session: session,
		Code:    code,
		Message: message,
	})
	return data
}
