package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"conductor/internal/storage"
)

func openStore(cmd *cobra.Command) (*storage.DB, error) {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return nil, fmt.Errorf("CLI context not initialized")
	}
	if !cliCtx.Config.Storage.Enabled {
		return nil, errors.New("storage is disabled (storage.enabled=false)")
	}
	return cliCtx.GetStorage()
}

// confirm asks a yes/no question on the command's stdin.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show persisted tool usage",
		Long:  `Show per-tool call counts, failures and timings recorded in the local database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			usage, err := db.UsageSummary(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(usage)
			}
			if len(usage) == 0 {
				fmt.Fprintln(out, "No tool executions recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tCALLS\tFAILURES\tAVG\tLAST USED")
			for _, u := range usage {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.0fms\t%s\n",
					u.Tool, u.Calls, u.Failures, u.AverageMs(), u.LastUsedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(newStatsExecutionsCmd())
	cmd.AddCommand(newStatsClearCmd())
	cmd.AddCommand(newStatsDBCmd())

	return cmd
}

func newStatsDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db",
		Short: "Show the database location and schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Path:   %s\nSchema: v%d\n", db.Path(), db.SchemaVersion())
			return nil
		},
	}
}

func newStatsExecutionsCmd() *cobra.Command {
	var (
		filter     storage.ExecutionFilter
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List recent tool executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			execs, err := db.ListExecutions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(execs)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTOOL\tSTATUS\tDURATION\tCONVERSATION")
			for _, e := range execs {
				status := "ok"
				if e.IsError {
					status = string(e.ErrorKind)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
					e.StartedAt.Format(time.DateTime), e.Tool, status, e.DurationMs, e.ConversationID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Tool, "tool", "", "only this tool")
	cmd.Flags().StringVar(&filter.ConversationID, "conversation", "", "only this conversation")
	cmd.Flags().BoolVar(&filter.ErrorsOnly, "errors", false, "only failed executions")
	cmd.Flags().IntVarP(&filter.Limit, "count", "n", 20, "number of executions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newStatsClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			if !force && !confirm(cmd, "Delete all recorded tool executions?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			n, err := db.ClearExecutions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d executions.\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}

// NewConversationsCmd creates the conversations command.
func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Inspect stored conversations",
	}

	cmd.AddCommand(newConversationsListCmd())
	cmd.AddCommand(newConversationsShowCmd())
	cmd.AddCommand(newConversationsDeleteCmd())

	return cmd
}

func newConversationsListCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			convs, err := db.ListConversations(cmd.Context(), count)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tMODE\tROUNDS\tMESSAGE")
			for _, c := range convs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					c.ID, c.CreatedAt.Format(time.DateTime), c.Mode, c.Rounds, truncate(c.Message, 50))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "number of conversations to show")

	return cmd
}

func newConversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one conversation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			conv, err := db.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("conversation %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(conv)
		},
	}
}

func newConversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := db.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("conversation %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s.\n", args[0])
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
