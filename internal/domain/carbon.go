package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies where a carbon reading came from.
type Source string

const (
	SourceLive       Source = "live"
	SourceHistorical Source = "historical"
)

// CarbonReading is a grid carbon intensity sample in gCO2/kWh.
type CarbonReading struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`

	// Stale is set when a cached live value past its TTL is served because
	// the refetch failed.
	Stale bool `json:"stale,omitempty"`
}

// NewCarbonReading builds a reading, clamping negative values to zero.
func NewCarbonReading(value float64, ts time.Time, source Source) CarbonReading {
	if value < 0 {
		value = 0
	}
	return CarbonReading{Value: value, Timestamp: ts, Source: source}
}

// ForecastPoint is a single hourly forecast estimate.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// CarbonTier is the coarse classification of an intensity against the
// configured thresholds.
type CarbonTier int

const (
	CarbonLow CarbonTier = iota
	CarbonMedium
	CarbonHigh
)

func (t CarbonTier) String() string {
	switch t {
	case CarbonLow:
		return "low"
	case CarbonMedium:
		return "medium"
	case CarbonHigh:
		return "high"
	default:
		return "unknown"
	}
}

func (t CarbonTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *CarbonTier) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for _, tier := range []CarbonTier{CarbonLow, CarbonMedium, CarbonHigh} {
		if tier.String() == name {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown carbon tier %q", string(text))
}

// CarbonGrams converts energy in joules at a given intensity (gCO2/kWh)
// into grams of CO2.
func CarbonGrams(energyJoules, intensity float64) float64 {
	return energyJoules * intensity / 3_600_000
}
