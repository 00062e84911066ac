package carbon

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/tui/components"
	"nathanbeddoewebdev/carbonq/internal/tui/styles"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const (
	defaultForecastHours = 24
	maxForecastHours     = 72
	defaultChartWidth    = 80
)

func ForecastCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Show the hourly carbon intensity forecast",
		Long: `Show hourly carbon intensity estimates starting at the next full hour.
Hours not covered by the live forecast come from the historical model.

Examples:
  carbonq carbon forecast
  carbonq carbon forecast --hours 48 --chart
  carbonq carbon forecast -o json`,
		Args:         cobra.NoArgs,
		RunE:         runForecast,
		SilenceUsage: true,
	}

	cmd.Flags().Int("hours", defaultForecastHours, fmt.Sprintf("Forecast horizon in hours (1-%d)", maxForecastHours))
	cmd.Flags().Bool("chart", false, "Plot the forecast as a chart")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runForecast(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	hours, _ := cmd.Flags().GetInt("hours")
	if hours < 1 || hours > maxForecastHours {
		return fmt.Errorf("--hours must be between 1 and %d", maxForecastHours)
	}
	chart, _ := cmd.Flags().GetBool("chart")

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	points := a.Carbon.Forecast(cmd.Context(), hours)

	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"zone":   a.Carbon.Zone(),
			"points": points,
		})
	}

	w := cmd.OutOrStdout()
	if chart {
		label := fmt.Sprintf("%s, next %dh (gCO2/kWh)", a.Carbon.Zone(), hours)
		fmt.Fprintln(w, components.ForecastChart(label, points, a.Policy.Thresholds(), chartWidth()))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "HOUR\tINTENSITY\tTIER")
	fmt.Fprintln(tw, "----\t---------\t----")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.0f\t%s\n",
			p.Timestamp.Local().Format("Mon 15:04"),
			p.Value,
			styles.TierIndicator(a.Policy.Classify(p.Value)),
		)
	}
	tw.Flush()

	if best, ok := cleanest(points); ok {
		fmt.Fprintf(w, "\nCleanest hour: %s (%.0f gCO2/kWh)\n", best.Timestamp.Local().Format("Mon 15:04"), best.Value)
	}
	return nil
}

// cleanest returns the earliest point with the lowest intensity.
func cleanest(points []domain.ForecastPoint) (domain.ForecastPoint, bool) {
	if len(points) == 0 {
		return domain.ForecastPoint{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Value < best.Value {
			best = p
		}
	}
	return best, true
}

func chartWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return defaultChartWidth
}
