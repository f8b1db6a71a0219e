package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"conductor/internal/config"
	"conductor/internal/gateway"
	"conductor/internal/gateway/websocket"
	"conductor/internal/runner"
	"conductor/internal/storage"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long: `Start the HTTP gateway.

The gateway serves:
- REST API endpoints under /api/v1
- round events over WebSocket at /ws/chat
- Prometheus metrics at /metrics

Changes to tools.search_enabled in the config file apply without a restart.`,
		Example: `  # Start with the configured address
  conductor serve

  # Start on another port
  conductor serve --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}
	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	hub := websocket.NewHub()
	app, err := cliCtx.BuildApp(runner.WithObserver(hub.PublishEvent))
	if err != nil {
		return err
	}

	deps := gateway.Deps{
		Runner:  app.Controller,
		Catalog: app.Catalog,
		Stats:   app.Executor,
		Hub:     hub,
		Version: Version,
		Backend: app.Backend.Name(),
	}
	if app.DB != nil {
		deps.Store = app.DB
		pruner, err := storage.NewPruner(app.DB, cfg.Storage.RetentionDuration(), cfg.Storage.PruneCron)
		if err != nil {
			return err
		}
		if err := pruner.Start(); err != nil {
			return err
		}
		defer pruner.Stop()
	}

	if _, err := os.Stat(cliCtx.ConfigPath); err == nil {
		watcher, err := config.Watch(cliCtx.ConfigPath, func(newCfg *config.Config) {
			enabled := newCfg.Tools.SearchEnabled
			if enabled == app.Catalog.SearchEnabled(context.Background()) {
				return
			}
			app.Catalog.SetSearchEnabled(enabled)
			log.Info().Bool("search_enabled", enabled).Msg("Search setting reloaded")
			_ = hub.Announce(websocket.TypeReload, map[string]bool{"search_enabled": enabled})
		})
		if err != nil {
			log.Warn().Err(err).Str("path", cliCtx.ConfigPath).Msg("Config hot reload disabled")
		} else {
			defer watcher.Stop()
		}
	}

	srv := gateway.NewServer(cfg.Server, deps)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().
		Str("address", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("backend", app.Backend.Name()).
		Msg("Server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
		return errors.New("server stopped unexpectedly")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
