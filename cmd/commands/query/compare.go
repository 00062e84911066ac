package query

import (
	"context"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func CompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <sql>",
		Short: "Run a query under every strategy and compare costs",
		Long: `Run a query once under each strategy, ignoring the policy, and print
the measured duration, energy and emissions side by side.

Examples:
  carbonq query compare "SELECT count(*) FROM orders"
  carbonq query compare "SELECT 1" -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runCompare,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	sql := strings.TrimSpace(args[0])
	if sql == "" {
		return fmt.Errorf("query must not be empty")
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := history.WithOrigin(cmd.Context(), history.OriginCLI)
	var results map[domain.Strategy]domain.ExecutionMetrics
	var reading domain.CarbonReading
	compare := func(ctx context.Context) error {
		var err error
		results, err = a.Engine.CompareStrategies(ctx, sql)
		reading = a.Carbon.Current(ctx)
		return err
	}

	if term.IsTerminal(int(os.Stdout.Fd())) && output == "table" {
		err = tui.WithSpinner(ctx, cmd.ErrOrStderr(), "Running each strategy...", compare)
	} else {
		err = compare(ctx)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		printCompareJSON(cmd, results, reading)
		return nil
	}
	printCompare(cmd, results, reading)
	return nil
}
