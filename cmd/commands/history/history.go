package history

import "github.com/spf13/cobra"

// NewCommand returns the "history" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View and manage execution history",
		Long: "View past query executions with their strategy, energy and emissions,\n" +
			"export them as JSON, and prune old entries.\n\n" +
			"History is stored locally in ~/.config/carbonq/carbonq.db.",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())
	cmd.AddCommand(ExportCommand())

	return cmd
}
