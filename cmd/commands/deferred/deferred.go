package deferred

import "github.com/spf13/cobra"

// NewCommand returns the "deferred" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deferred",
		Short: "Manage deferred queries",
		Long: "List, cancel and execute queries that were deferred to a cleaner window.\n\n" +
			"Deferred queries are stored locally in ~/.config/carbonq/carbonq.db and\n" +
			"run by \"carbonq serve\" or \"carbonq deferred run\".",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(CancelCommand())
	cmd.AddCommand(RunCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
