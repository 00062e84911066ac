package carbon

import "github.com/spf13/cobra"

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carbon",
		Short: "Inspect grid carbon intensity",
		Long:  "Show the current carbon intensity and the forecast for the configured zone.",
	}

	cmd.AddCommand(CurrentCommand())
	cmd.AddCommand(ForecastCommand())

	return cmd
}
