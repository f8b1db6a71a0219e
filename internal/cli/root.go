package cli

import (
	"context"

	"github.com/spf13/cobra"

	"conductor/internal/config"
	"conductor/pkg/logger"
)

// GlobalFlags are the persistent flags of every command.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

type contextKey struct{}

// noSetup marks commands that run without loading config or the logger.
const noSetup = "conductor/no-setup"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var flags GlobalFlags

	root := &cobra.Command{
		Use:   "conductor",
		Short: "Drive a language model through bounded rounds of tool use",
		Long: `conductor sends a request to a model, executes the tool calls it finds in
the reply (read-only in ask mode, with writes in agent mode), feeds the
results back for a bounded number of rounds and extracts the plan and file
operations from the final answer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[noSetup] != "" || cmd.Name() == "help" {
				return nil
			}
			cliCtx, err := setup(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, contextKey{}, cliCtx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cliCtx := GetCLIContext(cmd); cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.ConfigPath, "config", "c", "", "config file (default ~/.conductor/config.yaml)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "log at debug level")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "log errors only")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	version := NewVersionCmd()
	version.Annotations = map[string]string{noSetup: "true"}

	root.AddCommand(
		version,
		NewConfigCmd(),
		NewServeCmd(),
		NewChatCmd(),
		NewToolsCmd(),
		NewStatsCmd(),
		NewConversationsCmd(),
	)
	return root
}

// setup loads the config, initializes the logger and resolves the
// storage path.
func setup(flags GlobalFlags) (*CLIContext, error) {
	path := flags.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	switch {
	case flags.Verbose:
		level = "debug"
	case flags.Quiet:
		level = "error"
	}
	if err := logger.Init(logger.LogConfig{Level: level, Format: cfg.Log.Format, File: cfg.Log.File}); err != nil {
		return nil, err
	}

	dataPath := cfg.Storage.Path
	if dataPath == "" {
		if dataPath, err = config.DefaultDataPath(); err != nil {
			return nil, err
		}
	}
	return NewCLIContext(cfg, path, logger.Get(), dataPath, flags.Verbose, flags.Quiet), nil
}

// GetCLIContext returns the context stored by PersistentPreRunE.
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, _ := ctx.Value(contextKey{}).(*CLIContext)
	return cliCtx
}
