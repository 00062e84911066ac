package deferred

import (
	"fmt"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/engine"
	"nathanbeddoewebdev/carbonq/internal/tui/styles"

	"github.com/spf13/cobra"
)

func RunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute deferred queries as they become due",
		Long: `Run the deferred query scheduler in the foreground until interrupted.
Each due query is re-evaluated against the current carbon intensity and
either executed or deferred again, up to engine.max_redefers times.

With --once, execute the queries that are already due and exit.

Examples:
  carbonq deferred run
  carbonq deferred run --once`,
		Args:         cobra.NoArgs,
		RunE:         runScheduler,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("once", false, "Execute due queries and exit")

	return cmd
}

func runScheduler(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()
	completed := 0
	a.Engine.OnDeferredResult(func(r engine.DeferredResult) {
		completed++
		if r.Err != nil {
			fmt.Fprintf(w, "%s %s failed: %v\n", styles.ErrorText.Render("✗"), r.Request.ID, r.Err)
			return
		}
		line := fmt.Sprintf("%s %s ran with %s strategy", styles.SuccessText.Render("✓"), r.Request.ID, r.Outcome.Decision.Strategy)
		if m := r.Outcome.Metrics; m != nil {
			line += fmt.Sprintf(" (%.2f J, %.4f gCO2)", m.EnergyJoules, m.CarbonGrams(r.Outcome.Carbon.Value))
		}
		fmt.Fprintln(w, line)
	})

	if once {
		if err := a.Engine.RunOnce(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(w, "Executed %d deferred quer(y/ies); %d still pending.\n", completed, len(a.Engine.Pending()))
		return nil
	}

	fmt.Fprintf(w, "Scheduler running (poll every %s). Press Ctrl+C to stop.\n", a.Engine.PollInterval())
	return a.Engine.Run(cmd.Context())
}
