package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nathanbeddoewebdev/carbonq/cmd/commands/auth"
	"nathanbeddoewebdev/carbonq/cmd/commands/carbon"
	cfgcmd "nathanbeddoewebdev/carbonq/cmd/commands/config"
	"nathanbeddoewebdev/carbonq/cmd/commands/deferred"
	"nathanbeddoewebdev/carbonq/cmd/commands/history"
	"nathanbeddoewebdev/carbonq/cmd/commands/info"
	"nathanbeddoewebdev/carbonq/cmd/commands/query"
	"nathanbeddoewebdev/carbonq/cmd/commands/serve"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "carbonq",
		Short: "A carbon-aware SQL query engine",
		Long: `carbonq runs SQL queries with an execution strategy chosen from the
current carbon intensity of the electricity grid and the urgency of the
query. Urgent queries run immediately; flexible ones may be deferred to a
cleaner window. Every execution is measured for energy and emissions.

Carbon data comes from Electricity Maps when an API key is configured,
and from a built-in historical model otherwise.

Quick start:
  carbonq auth login                           # Store your Electricity Maps key
  carbonq carbon current                       # Show grid intensity
  carbonq query run "SELECT 1" --urgency low   # Run a query
  carbonq query compare "SELECT 1"             # Measure every strategy
  carbonq serve                                # HTTP API + deferral scheduler`,
	}

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(carbon.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(deferred.NewCommand())
	cmd.AddCommand(history.NewCommand())
	cmd.AddCommand(info.NewCommand())
	cmd.AddCommand(query.NewCommand())
	cmd.AddCommand(serve.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var root = rootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}
