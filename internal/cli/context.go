package cli

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"conductor/internal/config"
	"conductor/internal/executor"
	"conductor/internal/provider"
	"conductor/internal/provider/ollama"
	"conductor/internal/provider/openai"
	"conductor/internal/runner"
	"conductor/internal/storage"
	"conductor/internal/tools"
	"conductor/internal/tools/builtin"
	"conductor/pkg/logger"
)

var registerOnce sync.Once

func registerBackends() {
	registerOnce.Do(func() {
		ollama.Register()
		openai.Register()
	})
}

// CLIContext carries the loaded configuration and lazily opened resources
// of one command invocation.
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	StoragePath string
	Verbose     bool
	Quiet       bool

	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error
}

// NewCLIContext creates a CLI context.
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		StoragePath: storagePath,
		Verbose:     verbose,
		Quiet:       quiet,
	}
}

// GetStorage opens the database on first use.
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	c.storageOnce.Do(func() {
		c.storage, c.storageErr = storage.Open(c.StoragePath)
	})
	return c.storage, c.storageErr
}

// Close releases opened resources.
func (c *CLIContext) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

// Log returns the command logger.
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}

// NewCatalog builds the builtin tool catalog from configuration.
func (c *CLIContext) NewCatalog() (*tools.Catalog, error) {
	cfg := c.Config.Tools
	ws, err := config.ResolveWorkspace(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	catalog, err := builtin.NewCatalog(builtin.Options{
		Workspace:      ws,
		ShellTimeout:   cfg.ShellTimeout,
		MaxOutputBytes: cfg.MaxOutputBytes,
		AllowedHosts:   cfg.AllowedHosts,
		SearchEndpoint: cfg.SearchEndpoint,
		SearchAPIKey:   cfg.SearchAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}
	catalog.SetSearchEnabled(cfg.SearchEnabled)
	return catalog, nil
}

// App is the composed runtime: backend, tools, executor and controller.
type App struct {
	Backend    provider.Backend
	Catalog    *tools.Catalog
	Executor   *executor.Executor
	Controller *runner.Controller
	// DB is nil when storage is disabled.
	DB *storage.DB
}

// BuildApp composes the runtime. Options are passed to the controller.
func (c *CLIContext) BuildApp(opts ...runner.Option) (*App, error) {
	registerBackends()
	cfg := c.Config

	backend, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := c.NewCatalog()
	if err != nil {
		return nil, err
	}

	app := &App{Backend: backend, Catalog: catalog}

	var execOpts []executor.Option
	if cfg.Storage.Enabled {
		db, err := c.GetStorage()
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		app.DB = db
		execOpts = append(execOpts, executor.WithRecorder(storage.NewRecorder(db)))
	}

	app.Executor = executor.New(catalog, executor.Config{
		DefaultTimeout:  cfg.Executor.DefaultTimeout,
		HistorySize:     cfg.Executor.HistorySize,
		LoopWindow:      cfg.Executor.LoopWindow,
		LoopMaxRepeats:  cfg.Executor.LoopMaxRepeats,
		LoopHistorySize: cfg.Executor.LoopHistorySize,
		MaxResultBytes:  cfg.Executor.MaxResultBytes,
	}, execOpts...)

	app.Controller = runner.New(backend, catalog, app.Executor, runner.Config{
		MaxRounds: cfg.Runner.MaxRounds,
	}, opts...)

	c.Log().Debug().
		Str("backend", backend.Name()).
		Int("tools", catalog.Len()).
		Bool("storage", app.DB != nil).
		Msg("runtime composed")
	return app, nil
}
