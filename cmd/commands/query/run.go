package query

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/engine"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func RunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <sql>",
		Short: "Run a query with a carbon-aware strategy",
		Long: `Run a query. The strategy is chosen from the urgency and the current
carbon intensity; low and batch queries may be deferred to a cleaner
window instead of running now.

Deferred queries are stored locally and executed by "carbonq serve" or
"carbonq deferred run".

If --urgency is omitted and running in a terminal, an interactive picker
is shown. Otherwise the urgency defaults to medium.

Examples:
  carbonq query run "SELECT count(*) FROM orders" --urgency high
  carbonq query run "SELECT * FROM events" --urgency batch --explain
  carbonq query run "SELECT 1" --timeout 30s -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runQuery,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("urgency", "u", "", "Urgency: critical, high, medium, low or batch")
	cmd.Flags().Duration("timeout", 0, "Abort execution after this duration (e.g. 30s)")
	cmd.Flags().Bool("explain", false, "Explain the decision")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	sql := strings.TrimSpace(args[0])
	if sql == "" {
		return fmt.Errorf("query must not be empty")
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	explain, _ := cmd.Flags().GetBool("explain")

	interactive := term.IsTerminal(int(os.Stdout.Fd())) && output == "table"
	urgency, err := resolveUrgency(cmd, interactive)
	if err != nil {
		return err
	}

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	// The request must outlive this process if it is deferred.
	opts := []engine.ExecuteOption{engine.WithDetach()}
	if timeout > 0 {
		opts = append(opts, engine.WithTimeout(timeout))
	}
	if explain {
		opts = append(opts, engine.WithExplain())
	}

	ctx := history.WithOrigin(cmd.Context(), history.OriginCLI)
	var out *engine.Outcome
	execute := func(ctx context.Context) error {
		var err error
		out, err = a.Engine.Execute(ctx, sql, urgency, opts...)
		return err
	}
	if interactive {
		err = tui.WithSpinner(ctx, cmd.ErrOrStderr(), "Running query ("+urgency.String()+")...", execute)
		if errors.Is(err, tui.ErrAborted) {
			return err
		}
	} else {
		err = execute(ctx)
	}

	if out != nil {
		if output == "json" {
			printOutcomeJSON(cmd, out, err)
		} else {
			printOutcome(cmd, out, time.Now())
		}
	}
	return err
}

func resolveUrgency(cmd *cobra.Command, interactive bool) (domain.Urgency, error) {
	raw, _ := cmd.Flags().GetString("urgency")
	if strings.TrimSpace(raw) != "" {
		return domain.ParseUrgency(raw)
	}
	if interactive {
		return tui.PickUrgency()
	}
	return domain.UrgencyMedium, nil
}
