// Package policy decides, for a single query, which strategy to run or
// whether to defer it to a lower-carbon window.
//
// Decisions are pure functions of their inputs: the same urgency, reading,
// forecast and configuration always produce the same Decision.
package policy

import (
	"fmt"
	"math"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

// Thresholds bound the carbon tiers in gCO2/kWh. Values below Low are low
// carbon; values at or above High are high carbon.
type Thresholds struct {
	Low  float64 `json:"low_carbon"`
	High float64 `json:"high_carbon"`
}

// Profile is the static calibration used for pre-execution estimates.
type Profile struct {
	PowerWatts      float64 `json:"power_watts"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// EnergyJoules returns the estimated energy of one run.
func (p Profile) EnergyJoules() float64 {
	return p.PowerWatts * p.DurationSeconds
}

// Config holds the policy's immutable configuration.
type Config struct {
	Thresholds Thresholds
	Profiles   map[domain.Strategy]Profile
}

// DefaultThresholds returns the stock 250/500 gCO2/kWh bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 250, High: 500}
}

// DefaultProfiles returns calibration constants measured on a 4-core
// laptop running the sample orders table.
func DefaultProfiles() map[domain.Strategy]Profile {
	return map[domain.Strategy]Profile{
		domain.StrategyFast:      {PowerWatts: 65, DurationSeconds: 0.5},
		domain.StrategyEfficient: {PowerWatts: 15, DurationSeconds: 1.2},
		domain.StrategyBalanced:  {PowerWatts: 35, DurationSeconds: 0.7},
	}
}

// DefaultConfig returns a Config with stock thresholds and profiles.
func DefaultConfig() Config {
	return Config{Thresholds: DefaultThresholds(), Profiles: DefaultProfiles()}
}

// lookup is the (urgency, carbon tier) → strategy table. Critical is
// handled before the lookup and never defers.
var lookup = map[domain.Urgency][3]domain.Strategy{
	domain.UrgencyCritical: {domain.StrategyFast, domain.StrategyFast, domain.StrategyFast},
	domain.UrgencyHigh:     {domain.StrategyFast, domain.StrategyFast, domain.StrategyBalanced},
	domain.UrgencyMedium:   {domain.StrategyFast, domain.StrategyBalanced, domain.StrategyEfficient},
	domain.UrgencyLow:      {domain.StrategyFast, domain.StrategyBalanced, domain.StrategyEfficient},
	domain.UrgencyBatch:    {domain.StrategyFast, domain.StrategyBalanced, domain.StrategyEfficient},
}

// Policy evaluates decisions against fixed thresholds and profiles.
type Policy struct {
	thresholds Thresholds
	profiles   map[domain.Strategy]Profile
}

// New validates cfg and returns a Policy. Missing profiles are filled
// from DefaultProfiles.
func New(cfg Config) (*Policy, error) {
	t := cfg.Thresholds
	switch {
	case t.Low < 0 || math.IsNaN(t.Low):
		return nil, &domain.ConfigurationError{Field: "thresholds.low_carbon", Reason: "must be a non-negative number"}
	case t.High < 0 || math.IsNaN(t.High):
		return nil, &domain.ConfigurationError{Field: "thresholds.high_carbon", Reason: "must be a non-negative number"}
	case t.Low >= t.High:
		return nil, &domain.ConfigurationError{
			Field:  "thresholds",
			Reason: fmt.Sprintf("low_carbon (%g) must be below high_carbon (%g)", t.Low, t.High),
		}
	}

	profiles := DefaultProfiles()
	for s, p := range cfg.Profiles {
		if p.PowerWatts < 0 || p.DurationSeconds < 0 {
			return nil, &domain.ConfigurationError{
				Field:  "estimates." + s.String(),
				Reason: "power and duration must be non-negative",
			}
		}
		profiles[s] = p
	}

	return &Policy{thresholds: t, profiles: profiles}, nil
}

// Thresholds returns the configured carbon bands.
func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// Classify returns the carbon tier for an intensity value.
func (p *Policy) Classify(value float64) domain.CarbonTier {
	switch {
	case value < p.thresholds.Low:
		return domain.CarbonLow
	case value >= p.thresholds.High:
		return domain.CarbonHigh
	default:
		return domain.CarbonMedium
	}
}

// Decide selects a strategy for the query or defers it.
func (p *Policy) Decide(urgency domain.Urgency, carbon domain.CarbonReading, forecast []domain.ForecastPoint) domain.Decision {
	if urgency == domain.UrgencyCritical {
		return p.selected(domain.StrategyFast, p.Classify(carbon.Value), carbon.Value,
			"critical urgency: latency dominates, running fast")
	}

	tier := p.Classify(carbon.Value)
	if urgency.CanDefer() && tier == domain.CarbonHigh {
		if point, minutes, ok := p.deferralTarget(carbon, forecast); ok {
			strategy := p.strategyFor(urgency, p.Classify(point.Value))
			energy := p.profile(strategy).EnergyJoules()
			return domain.Decision{
				ShouldDefer:  true,
				DeferMinutes: minutes,
				CarbonTier:   tier,
				Reason: fmt.Sprintf("high carbon (%.0f gCO2/kWh): deferring %dm to forecast point %s at %.0f gCO2/kWh",
					carbon.Value, minutes, point.Timestamp.UTC().Format("2006-01-02 15:04 UTC"), point.Value),
				ExpectedEnergyJoules: energy,
				ExpectedCarbonGrams:  domain.CarbonGrams(energy, point.Value),
			}
		}
	}

	return p.selected(p.strategyFor(urgency, tier), tier, carbon.Value,
		fmt.Sprintf("%s carbon (%.0f gCO2/kWh) at %s urgency", tier, carbon.Value, urgency))
}

// DecideForced applies the lookup without considering deferral. It is the
// escape valve for requests that exhausted their re-defer budget.
func (p *Policy) DecideForced(urgency domain.Urgency, carbon domain.CarbonReading, attempts int) domain.Decision {
	tier := p.Classify(carbon.Value)
	strategy := p.strategyFor(urgency, tier)
	return p.selected(strategy, tier, carbon.Value,
		fmt.Sprintf("deferral exhausted after %d attempts: %s carbon (%.0f gCO2/kWh) at %s urgency",
			attempts, tier, carbon.Value, urgency))
}

func (p *Policy) selected(s domain.Strategy, tier domain.CarbonTier, intensity float64, reason string) domain.Decision {
	energy := p.profile(s).EnergyJoules()
	return domain.Decision{
		Strategy:             s,
		CarbonTier:           tier,
		Reason:               reason + ": " + s.String(),
		ExpectedEnergyJoules: energy,
		ExpectedCarbonGrams:  domain.CarbonGrams(energy, intensity),
	}
}

func (p *Policy) strategyFor(urgency domain.Urgency, tier domain.CarbonTier) domain.Strategy {
	row, ok := lookup[urgency]
	if !ok {
		row = lookup[domain.UrgencyMedium]
	}
	return row[tier]
}

func (p *Policy) profile(s domain.Strategy) Profile {
	return p.profiles[s]
}

// deferralTarget scans the forecast for the earliest point below the low
// threshold, falling back to the earliest minimum. It reports false when
// there is nothing to wait for.
func (p *Policy) deferralTarget(carbon domain.CarbonReading, forecast []domain.ForecastPoint) (domain.ForecastPoint, int, bool) {
	if len(forecast) == 0 {
		return domain.ForecastPoint{}, 0, false
	}

	target := -1
	for i, pt := range forecast {
		if pt.Value < p.thresholds.Low {
			target = i
			break
		}
	}
	if target < 0 {
		target = 0
		for i, pt := range forecast {
			if pt.Value < forecast[target].Value {
				target = i
			}
		}
	}

	point := forecast[target]
	minutes := int(math.Round(point.Timestamp.Sub(carbon.Timestamp).Minutes()))
	if minutes <= 0 {
		return domain.ForecastPoint{}, 0, false
	}
	return point, minutes, true
}
