package history

import (
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/carbonq/internal/history"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent executions",
		Long: `List recent query executions stored locally, newest first.

Examples:
  carbonq history list
  carbonq history list --limit 50
  carbonq history list --origin scheduler
  carbonq history list -o json`,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmd.Flags().String("origin", "", "Filter by origin (cli, api, scheduler)")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	origin, _ := cmd.Flags().GetString("origin")
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	repo, err := history.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.List(limit)
	if err != nil {
		return err
	}
	if origin != "" {
		filtered := records[:0]
		for _, r := range records {
			if r.Origin == origin {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if output == "json" {
		return history.Export(cmd.OutOrStdout(), records)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No executions found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tORIGIN\tURGENCY\tSTRATEGY\tOUTCOME\tDURATION\tENERGY (J)\tEMISSIONS (g)\tSQL")
	fmt.Fprintln(w, "----\t------\t-------\t--------\t-------\t--------\t----------\t-------------\t---")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%.4f\t%s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			orDash(r.Origin),
			r.Urgency,
			r.Strategy,
			r.Outcome,
			formatDuration(r.DurationMs),
			r.EnergyJoules,
			r.CarbonGrams,
			truncate(r.SQL, 40),
		)
	}
	w.Flush()

	var joules, grams float64
	for _, r := range records {
		joules += r.EnergyJoules
		grams += r.CarbonGrams
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d execution(s), %.2f J, %.4f gCO2 total\n", len(records), joules, grams)
	return nil
}

func formatDuration(ms float64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%.0fms", ms)
	case ms < 60_000:
		return fmt.Sprintf("%.1fs", ms/1000)
	case ms < 3_600_000:
		return fmt.Sprintf("%dm", int(ms/60_000))
	default:
		return fmt.Sprintf("%dh", int(ms/3_600_000))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
