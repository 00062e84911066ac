package carbon

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/services/auth"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/tui/styles"

	"github.com/spf13/cobra"
)

func CurrentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the current carbon intensity",
		Long: `Show the current grid carbon intensity for the configured zone and how
it classifies against the low and high thresholds.

Live readings are cached for carbon_api.cache_minutes. Use --refresh to
bypass the cache. Without an API key the historical model is used.

Examples:
  carbonq carbon current
  carbonq carbon current --refresh -o json`,
		Args:         cobra.NoArgs,
		RunE:         runCurrent,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("refresh", false, "Ignore cached readings and refetch")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type currentJSON struct {
	Zone string `json:"zone"`
	domain.CarbonReading
	Tier domain.CarbonTier `json:"tier"`
}

func runCurrent(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	refresh, _ := cmd.Flags().GetBool("refresh")

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if refresh {
		if err := a.Carbon.Invalidate(); err != nil {
			return fmt.Errorf("failed to clear carbon cache: %w", err)
		}
	}

	reading := a.Carbon.Current(cmd.Context())
	tier := a.Policy.Classify(reading.Value)

	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(currentJSON{Zone: a.Carbon.Zone(), CarbonReading: reading, Tier: tier})
	}

	w := cmd.OutOrStdout()
	t := a.Policy.Thresholds()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Zone:\t%s\n", a.Carbon.Zone())
	fmt.Fprintf(tw, "Intensity:\t%.0f gCO2/kWh\n", reading.Value)
	fmt.Fprintf(tw, "Tier:\t%s\n", styles.TierIndicator(tier))
	fmt.Fprintf(tw, "Thresholds:\tlow < %.0f, high > %.0f\n", t.Low, t.High)
	fmt.Fprintf(tw, "Source:\t%s\n", formatSource(reading))
	fmt.Fprintf(tw, "Measured:\t%s\n", reading.Timestamp.Local().Format(time.DateTime))
	tw.Flush()

	if reading.Source == domain.SourceHistorical && a.KeySource == auth.KeySourceNone {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.MutedText.Render(`No API key configured. Run "carbonq auth login" for live data.`))
	}
	return nil
}

func formatSource(r domain.CarbonReading) string {
	if r.Stale {
		return string(r.Source) + " (stale)"
	}
	return string(r.Source)
}
