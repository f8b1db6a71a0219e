// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"conductor/internal/config"
	"conductor/internal/gateway/handlers"
	"conductor/internal/gateway/middleware"
	"conductor/internal/gateway/websocket"
	"conductor/pkg/logger"
	"conductor/pkg/metrics"
)

// Deps are the components the gateway serves. Store and Hub may be nil.
type Deps struct {
	Runner  handlers.Runner
	Catalog handlers.Catalog
	Stats   handlers.Stats
	Store   handlers.Store
	Hub     *websocket.Hub
	Version string
	Backend string
}

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	config      config.ServerConfig
	rateLimiter *middleware.RateLimiter

	// Cancels websocket conversations on shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewServer creates a new gateway server.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := mux.NewRouter()

	rlConfig := middleware.DefaultRateLimiterConfig()
	rlConfig.Enabled = cfg.RateLimit > 0
	if cfg.RateLimit > 0 {
		rlConfig.RequestsPerMinute = cfg.RateLimit
	}
	if cfg.Burst > 0 {
		rlConfig.Burst = cfg.Burst
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig)

	// RequestID -> Recovery -> CORS -> RateLimit -> router; Logging runs
	// inside the router so it can see the matched route.
	router.Use(middleware.Logging)
	handler := middleware.RequestID(
		middleware.Recovery(
			middleware.CORS(
				rateLimiter.RateLimit(router),
			),
		),
	)

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		httpServer: &http.Server{
			Handler:     handler,
			ReadTimeout: 60 * time.Second,
			// Conversations may run for minutes; no write timeout.
			IdleTimeout: 120 * time.Second,
		},
		router:      router,
		hub:         deps.Hub,
		config:      cfg,
		rateLimiter: rateLimiter,
		baseCtx:     baseCtx,
		cancel:      cancel,
	}
	s.setupRoutes(deps)
	return s
}

// setupRoutes configures the server routes.
func (s *Server) setupRoutes(deps Deps) {
	api := &handlers.API{
		Runner:  deps.Runner,
		Catalog: deps.Catalog,
		Stats:   deps.Stats,
		Store:   deps.Store,
		Version: deps.Version,
		Backend: deps.Backend,
		Started: time.Now(),
	}
	api.Register(s.router)

	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if s.hub != nil {
		var store websocket.ConversationStore
		if deps.Store != nil {
			store = deps.Store
		}
		s.hub.SetChatHandler(websocket.NewChatHandler(s.baseCtx, deps.Runner, store))
		s.router.HandleFunc("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWs(s.hub, w, r)
		})
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer.Addr = ln.Addr().String()

	if s.hub != nil {
		go s.hub.Run()
	}

	logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("Starting gateway server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	s.cancel()
	if s.hub != nil {
		s.hub.Stop()
	}
	s.rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
