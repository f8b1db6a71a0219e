package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"conductor/internal/tools"
)

// NewToolsCmd creates the tools command.
func NewToolsCmd() *cobra.Command {
	var (
		mode       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		Long: `List the builtin tools with their kind and call signature.

Mutating tools are marked unavailable in ask mode. web_search is listed only
when tools.search_enabled is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			catalog, err := cliCtx.NewCatalog()
			if err != nil {
				return err
			}
			descs := catalog.ListTools(cmd.Context())
			m := tools.ParseMode(mode)

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(descs)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tAVAILABLE\tUSAGE")
			for _, d := range descs {
				available := "yes"
				if d.Kind.Mutating() && !m.AllowsWrite() {
					available = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Kind, available, d.Usage())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(tools.ModeAsk), "mode used for availability: ask or agent")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output descriptors as JSON")

	return cmd
}
