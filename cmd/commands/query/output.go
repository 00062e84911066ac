package query

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/engine"
	"nathanbeddoewebdev/carbonq/internal/executor"
	"nathanbeddoewebdev/carbonq/internal/tui/styles"

	"github.com/spf13/cobra"
)

// maxTableRows caps how many result rows the table view prints.
const maxTableRows = 50

type outcomeJSON struct {
	*engine.Outcome
	CarbonGrams *float64 `json:"carbon_grams,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// printOutcomeJSON encodes an outcome as indented JSON to stdout.
func printOutcomeJSON(cmd *cobra.Command, out *engine.Outcome, err error) {
	payload := outcomeJSON{Outcome: out}
	if out.Metrics != nil {
		grams := out.Metrics.CarbonGrams(out.Carbon.Value)
		payload.CarbonGrams = &grams
	}
	if err != nil {
		payload.Error = err.Error()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(payload)
}

// printOutcome prints the decision, any result rows, and the measured cost.
func printOutcome(cmd *cobra.Command, out *engine.Outcome, now time.Time) {
	w := cmd.OutOrStdout()
	d := out.Decision

	fmt.Fprintf(w, "%s %s\n", styles.Label.Render("Carbon:"), formatReading(out.Carbon, d.CarbonTier))

	if out.Deferred != nil {
		req := out.Deferred
		wait := req.DueAt.Sub(now).Round(time.Minute)
		if wait < 0 {
			wait = 0
		}
		fmt.Fprintf(w, "%s %s\n", styles.Label.Render("Decision:"), styles.WarningText.Render("deferred"))
		fmt.Fprintf(w, "  %s\n", d.Reason)
		fmt.Fprintf(w, "  Request %s runs at %s (in %s).\n",
			req.ID, req.DueAt.Local().Format("Mon 15:04"), wait)
		fmt.Fprintln(w, styles.MutedText.Render(`  Deferred queries are executed by "carbonq serve" or "carbonq deferred run".`))
		printExplanation(w, out.Explanation)
		return
	}

	fmt.Fprintf(w, "%s %s\n", styles.Label.Render("Strategy:"), styles.StrategyStyle(d.Strategy).Render(d.Strategy.String()))
	fmt.Fprintf(w, "  %s\n", d.Reason)

	if out.Result != nil {
		fmt.Fprintln(w)
		printResult(w, out.Result)
	}

	if m := out.Metrics; m != nil {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  Duration:\t%s\n", formatMs(m.DurationMs()))
		fmt.Fprintf(tw, "  Energy:\t%.2f J (%s)\n", m.EnergyJoules, m.Tier)
		fmt.Fprintf(tw, "  Power:\t%.1f W\n", m.PowerWatts)
		fmt.Fprintf(tw, "  CPU:\t%.1f%%\n", m.CPUPercent)
		fmt.Fprintf(tw, "  Memory:\t%.1f MB\n", m.MemoryMB)
		fmt.Fprintf(tw, "  Emissions:\t%s\n", formatGrams(m.CarbonGrams(out.Carbon.Value)))
		if m.Partial {
			fmt.Fprintf(tw, "  Note:\t%s\n", styles.WarningText.Render("partial measurement, execution did not finish"))
		}
		tw.Flush()
	}

	printExplanation(w, out.Explanation)
}

func printExplanation(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.Card.Render(strings.TrimRight(text, "\n")))
}

// printResult prints rows as an aligned table, truncated to maxTableRows.
func printResult(w io.Writer, r *executor.Result) {
	if len(r.Columns) == 0 {
		fmt.Fprintln(w, "(no columns)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(r.Columns, "\t")))
	dashes := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		dashes[i] = strings.Repeat("-", max(len(c), 1))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for i, row := range r.Rows {
		if i == maxTableRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	switch n := len(r.Rows); {
	case n == 0:
		fmt.Fprintln(w, "(0 rows)")
	case n > maxTableRows:
		fmt.Fprintf(w, "(%d rows, showing first %d; use -o json for all)\n", n, maxTableRows)
	case n == 1:
		fmt.Fprintln(w, "(1 row)")
	default:
		fmt.Fprintf(w, "(%d rows)\n", n)
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func formatReading(r domain.CarbonReading, tier domain.CarbonTier) string {
	src := string(r.Source)
	if r.Stale {
		src += ", stale"
	}
	return fmt.Sprintf("%.0f gCO2/kWh (%s) %s", r.Value, src, styles.TierIndicator(tier))
}

func formatMs(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.1fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

func formatGrams(g float64) string {
	switch {
	case g == 0:
		return "0 gCO2"
	case g < 0.001:
		return fmt.Sprintf("%.3f mgCO2", g*1000)
	default:
		return fmt.Sprintf("%.4f gCO2", g)
	}
}

type compareJSON struct {
	domain.ExecutionMetrics
	CarbonGrams float64 `json:"carbon_grams"`
}

// printCompareJSON encodes per-strategy metrics with emissions as JSON.
func printCompareJSON(cmd *cobra.Command, results map[domain.Strategy]domain.ExecutionMetrics, reading domain.CarbonReading) {
	strategies := make(map[string]compareJSON, len(results))
	for s, m := range results {
		strategies[s.String()] = compareJSON{ExecutionMetrics: m, CarbonGrams: m.CarbonGrams(reading.Value)}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(map[string]any{
		"carbon":     reading,
		"strategies": strategies,
	})
}

// printCompare prints one row per strategy in declared order and marks the
// lowest-emission strategy.
func printCompare(cmd *cobra.Command, results map[domain.Strategy]domain.ExecutionMetrics, reading domain.CarbonReading) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Carbon intensity: %.0f gCO2/kWh (%s)\n\n", reading.Value, reading.Source)

	best := domain.StrategyNone
	bestGrams := math.Inf(1)
	for _, s := range domain.Strategies {
		if m, ok := results[s]; ok {
			if g := m.CarbonGrams(reading.Value); g < bestGrams {
				best, bestGrams = s, g
			}
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tDURATION\tENERGY (J)\tPOWER (W)\tCPU %\tMEM (MB)\tEMISSIONS\tTIER")
	fmt.Fprintln(tw, "--------\t--------\t----------\t---------\t-----\t--------\t---------\t----")
	for _, s := range domain.Strategies {
		m, ok := results[s]
		if !ok {
			continue
		}
		name := s.String()
		if s == best {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.1f\t%.1f\t%.1f\t%s\t%s\n",
			name,
			formatMs(m.DurationMs()),
			m.EnergyJoules,
			m.PowerWatts,
			m.CPUPercent,
			m.MemoryMB,
			formatGrams(m.CarbonGrams(reading.Value)),
			m.Tier,
		)
	}
	tw.Flush()
	fmt.Fprintln(w, "\n* lowest emissions")
}
