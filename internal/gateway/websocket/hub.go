package websocket

import (
	"sync"

	"conductor/internal/runner"
	"conductor/pkg/logger"
	"conductor/pkg/metrics"
)

// ChatHandler starts a conversation for a chat frame. Frames written to the
// returned channel go to the session's subscribers; the handler closes it
// when the conversation ends.
type ChatHandler func(sessionID string, msg WSMessage) (<-chan []byte, error)

// outbound is a frame waiting for delivery. An empty session targets every
// connected client.
type outbound struct {
	session string
	data    []byte
}

// Hub tracks connected clients and the conversations each one follows.
// Membership changes and deliveries are serialized through Run; the maps
// are also read under mu by Subscribe and ClientCount.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	followers map[string]map[*Client]struct{}
	chat      ChatHandler

	joins  chan *Client
	leaves chan *Client
	frames chan outbound

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub returns a hub with no clients. Call Run before registering any.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		followers: make(map[string]map[*Client]struct{}),
		joins:     make(chan *Client),
		leaves:    make(chan *Client),
		frames:    make(chan outbound, sendQueueLen),
		done:      make(chan struct{}),
	}
}

// SetChatHandler installs the handler chat frames are passed to.
func (h *Hub) SetChatHandler(handler ChatHandler) {
	h.mu.Lock()
	h.chat = handler
	h.mu.Unlock()
}

// HandleChat passes msg to the chat handler. It returns a nil channel and
// no error when chat is not configured.
func (h *Hub) HandleChat(sessionID string, msg WSMessage) (<-chan []byte, error) {
	h.mu.RLock()
	handler := h.chat
	h.mu.RUnlock()
	if handler == nil {
		return nil, nil
	}
	return handler(sessionID, msg)
}

// Run serves membership changes and deliveries until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.joins:
			h.attach(c)
		case c := <-h.leaves:
			h.detach(c)
		case f := <-h.frames:
			h.deliver(f)
		}
	}
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSClients.Set(float64(n))
	logger.Component("ws").Debug().Str("client_id", c.id).Int("clients", n).Msg("client attached")
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for session := range c.sessions {
		h.unfollow(c, session)
	}
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSClients.Set(float64(n))
	logger.Component("ws").Debug().Str("client_id", c.id).Int("clients", n).Msg("client detached")
}

// deliver queues f on every target client. Clients whose queue is full
// miss the frame.
func (h *Hub) deliver(f outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if f.session != "" {
		targets = h.followers[f.session]
	}
	for c := range targets {
		c.enqueue(f.data)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*Client]struct{})
	h.followers = make(map[string]map[*Client]struct{})
	h.mu.Unlock()
	metrics.WSClients.Set(0)
}

// unfollow drops c from session's followers. Callers hold mu.
func (h *Hub) unfollow(c *Client, session string) {
	set := h.followers[session]
	delete(set, c)
	if len(set) == 0 {
		delete(h.followers, session)
	}
}

// Stop ends Run and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register attaches c. It does not block once the hub is stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.joins <- c:
	case <-h.done:
	}
}

// Unregister detaches c and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.leaves <- c:
	case <-h.done:
	}
}

// Subscribe makes c follow session.
func (h *Hub) Subscribe(c *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.sessions[session] = true
	set, ok := h.followers[session]
	if !ok {
		set = make(map[*Client]struct{})
		h.followers[session] = set
	}
	set[c] = struct{}{}
}

// Unsubscribe stops c following session.
func (h *Hub) Unsubscribe(c *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(c.sessions, session)
	h.unfollow(c, session)
}

// Broadcast sends data to the followers of session, or to every client
// when session is empty.
func (h *Hub) Broadcast(session string, data []byte) {
	select {
	case h.frames <- outbound{session: session, data: data}:
	case <-h.done:
	}
}

// Announce sends a frame of msgType to every connected client.
func (h *Hub) Announce(msgType string, payload any) error {
	data, err := Encode(msgType, "", payload)
	if err != nil {
		return err
	}
	h.Broadcast("", data)
	return nil
}

// PublishEvent forwards a conversation transition to the clients following
// that conversation. It is meant to be passed to runner.WithObserver.
func (h *Hub) PublishEvent(e runner.Event) {
	data, err := Encode(TypeEvent, e.ConversationID, e)
	if err != nil {
		logger.Component("ws").Error().Err(err).Str("conversation_id", e.ConversationID).Msg("encode event")
		return
	}
	h.Broadcast(e.ConversationID, data)
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
