package styles

import (
	"github.com/charmbracelet/lipgloss"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

// --- Typography ---

var (
	// Label is used for field names in detail views.
	Label = lipgloss.NewStyle().
		Foreground(Gray).
		Bold(true)

	// MutedText is for help text, hints, and less important info.
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	// ErrorText is for error messages.
	ErrorText = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// SuccessText is for success messages.
	SuccessText = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// WarningText is for warning messages.
	WarningText = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)
)

// --- Badges ---

// TierStyle colors a carbon tier from green (low) to red (high).
func TierStyle(tier domain.CarbonTier) lipgloss.Style {
	switch tier {
	case domain.CarbonLow:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case domain.CarbonMedium:
		return lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	case domain.CarbonHigh:
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// TierIndicator returns a small dot + tier name with the tier's color.
func TierIndicator(tier domain.CarbonTier) string {
	style := TierStyle(tier)
	return style.Render("●") + " " + style.Render(tier.String())
}

// StrategyStyle returns the badge style for an execution strategy.
func StrategyStyle(s domain.Strategy) lipgloss.Style {
	switch s {
	case domain.StrategyFast:
		return lipgloss.NewStyle().Foreground(Blue).Bold(true)
	case domain.StrategyEfficient:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case domain.StrategyBalanced:
		return lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// --- Layout components ---

var (
	// Border is the default subtle border style.
	Border = lipgloss.RoundedBorder()

	// Card is a rounded-border panel for content sections.
	Card = lipgloss.NewStyle().
		Border(Border).
		BorderForeground(DimGray).
		Padding(0, 1)
)
