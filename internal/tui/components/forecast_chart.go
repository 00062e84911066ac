package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/policy"
	"nathanbeddoewebdev/carbonq/internal/tui/styles"
)

// chartHeight is the fixed height for forecast charts.
const chartHeight = 10

// ForecastChart plots hourly intensities with the low and high carbon
// thresholds as reference lines. Returns a muted note if points is empty.
func ForecastChart(label string, points []domain.ForecastPoint, t policy.Thresholds, width int) string {
	if len(points) == 0 {
		return styles.MutedText.Render(label + ": no data")
	}

	data := make([]float64, len(points))
	for i, p := range points {
		data[i] = p.Value
	}

	// Reserve space for Y-axis labels (number + " ┤" ≈ 9 chars).
	plotWidth := width - 9
	if plotWidth < 10 {
		plotWidth = 10
	}

	chart := asciigraph.PlotMany(
		[][]float64{data, constant(t.Low, len(data)), constant(t.High, len(data))},
		asciigraph.Height(chartHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.DodgerBlue, asciigraph.Green, asciigraph.LightCoral),
		asciigraph.SeriesLegends("gCO2/kWh", "low", "high"),
		asciigraph.LabelColor(asciigraph.Default),
	)

	lo, hi := minMax(data)
	best := cleanestHour(points)
	summary := styles.MutedText.Render(
		fmt.Sprintf("  now: %s  min: %s  max: %s  cleanest: %s",
			formatValue(data[0], ""),
			formatValue(lo, ""),
			formatValue(hi, ""),
			best.Timestamp.Local().Format("Mon 15:04"),
		),
	)

	axis := styles.MutedText.Render(timeAxis(points, plotWidth))
	header := styles.Label.Render(label)
	return lipgloss.JoinVertical(lipgloss.Left, header, chart, axis, summary)
}

// cleanestHour returns the earliest point with the minimum value.
func cleanestHour(points []domain.ForecastPoint) domain.ForecastPoint {
	best := points[0]
	for _, p := range points[1:] {
		if p.Value < best.Value {
			best = p
		}
	}
	return best
}

// timeAxis labels the first and last hour under the plot.
func timeAxis(points []domain.ForecastPoint, width int) string {
	first := points[0].Timestamp.Local().Format("15:04")
	last := points[len(points)-1].Timestamp.Local().Format("15:04")
	gap := width - len(first) - len(last)
	if gap < 1 {
		gap = 1
	}
	return strings.Repeat(" ", 9) + first + strings.Repeat(" ", gap) + last
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// minMax returns the minimum and maximum values from a slice.
func minMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// formatValue renders a float with an optional suffix, using human-readable
// formatting for large values.
func formatValue(v float64, suffix string) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM%s", v/1_000_000, suffix)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK%s", v/1_000, suffix)
	default:
		return fmt.Sprintf("%.0f%s", v, suffix)
	}
}
