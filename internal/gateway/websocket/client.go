package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"conductor/pkg/logger"
	"conductor/pkg/metrics"
)

// Connection limits. Chat frames are small; results can carry a full
// answer with plan and file operations, which only flow outward.
const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = 60 * time.Second
	pingInterval  = idleTimeout / 2
	maxFrameBytes = 512 << 10
	sendQueueLen  = 256
)

// The gateway's CORS policy already admits any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is one websocket connection. It may follow several sessions
// (conversation ids) at once.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	sessions    map[string]bool
	id          string
	connectedAt time.Time
}

// NewClient creates a client for conn.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendQueueLen),
		sessions:    make(map[string]bool),
		id:          uuid.NewString(),
		connectedAt: time.Now(),
	}
}

func (c *Client) log() zerolog.Logger {
	return logger.Component("ws").With().Str("client_id", c.id).Logger()
}

// frameHandlers dispatch inbound frames by type.
var frameHandlers = map[string]func(*Client, WSMessage){
	TypeSubscribe: func(c *Client, m WSMessage) {
		if m.Session != "" {
			c.hub.Subscribe(c, m.Session)
		}
	},
	TypeUnsubscribe: func(c *Client, m WSMessage) {
		if m.Session != "" {
			c.hub.Unsubscribe(c, m.Session)
		}
	},
	TypePing: func(c *Client, m WSMessage) {
		if data, err := Encode(TypePong, m.Session, nil); err == nil {
			c.enqueue(data)
		}
	},
	TypeChat: (*Client).startChat,
}

// handleMessage decodes and dispatches one inbound frame.
func (c *Client) handleMessage(raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log().Debug().Err(err).Msg("undecodable frame")
		c.enqueue(errorFrame("", "INVALID_MESSAGE", "frame is not valid JSON"))
		return
	}

	handle, ok := frameHandlers[msg.Type]
	if !ok {
		c.enqueue(errorFrame(msg.Session, "UNKNOWN_TYPE", "unsupported frame type: "+msg.Type))
		return
	}
	handle(c, msg)
}

// startChat runs a conversation for a chat frame. The session defaults to
// the client id; the client follows it before the run starts so no
// transition event is missed.
func (c *Client) startChat(msg WSMessage) {
	if msg.Message == "" {
		c.enqueue(errorFrame(msg.Session, "INVALID_REQUEST", "chat message is required"))
		return
	}
	session := msg.Session
	if session == "" {
		session = c.id
	}
	c.hub.Subscribe(c, session)

	frames, err := c.hub.HandleChat(session, msg)
	switch {
	case err != nil:
		c.log().Warn().Err(err).Str("session", session).Msg("chat rejected")
		c.enqueue(errorFrame(session, "CHAT_ERROR", err.Error()))
		return
	case frames == nil:
		c.enqueue(errorFrame(session, "CHAT_ERROR", "chat is not available on this server"))
		return
	}

	// Results go through the hub so every subscriber of the session sees
	// them, and a client that disconnects mid-run is simply skipped.
	go func() {
		for data := range frames {
			c.hub.Broadcast(session, data)
		}
	}()
}

// enqueue hands data to the write loop without blocking. A client that
// cannot keep up loses frames rather than stalling the hub.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		metrics.WSFrames.WithLabelValues("queued").Inc()
		return true
	default:
		metrics.WSFrames.WithLabelValues("dropped").Inc()
		c.log().Warn().Int("queued", len(c.send)).Msg("send queue full, frame dropped")
		return false
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.log().Debug().Dur("connected_for", time.Since(c.connectedAt)).Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log().Warn().Err(err).Msg("connection lost")
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) writeLoop() {
	keepalive := time.NewTicker(pingInterval)
	defer func() {
		keepalive.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, open := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log().Debug().Err(err).Msg("write failed")
				return
			}
		case <-keepalive.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades r and attaches the connection to hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := NewClient(hub, conn)
	hub.Register(c)
	c.log().Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writeLoop()
	go c.readLoop()
}
