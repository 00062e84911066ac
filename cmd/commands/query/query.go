package query

import "github.com/spf13/cobra"

// NewCommand returns the "query" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run SQL queries with carbon-aware strategies",
		Long: "Run SQL queries against the configured database.\n\n" +
			"The engine picks an execution strategy (fast, efficient or balanced)\n" +
			"from the query's urgency and the current grid carbon intensity, and\n" +
			"may defer low-urgency queries to a cleaner window.",
		SilenceUsage: true,
	}

	cmd.AddCommand(RunCommand())
	cmd.AddCommand(CompareCommand())

	return cmd
}
