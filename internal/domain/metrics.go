package domain

import "time"

// ProfilingTier identifies which measurement path produced energy figures.
type ProfilingTier string

const (
	TierHardware  ProfilingTier = "hardware"
	TierEstimated ProfilingTier = "estimated"
	TierDisabled  ProfilingTier = "disabled"
)

// ExecutionMetrics is the measured cost of one execution attempt.
type ExecutionMetrics struct {
	Duration     time.Duration `json:"duration"`
	EnergyJoules float64       `json:"energy_joules"`
	PowerWatts   float64       `json:"power_watts"`
	CPUPercent   float64       `json:"cpu_percent"`
	MemoryMB     float64       `json:"memory_mb"`
	Tier         ProfilingTier `json:"tier"`

	// Partial is set when the run was cancelled or timed out mid-execution.
	Partial bool `json:"partial,omitempty"`
}

// CarbonGrams returns the emissions of this run at the given intensity.
// It depends on the caller-supplied intensity and is never cached.
func (m ExecutionMetrics) CarbonGrams(intensity float64) float64 {
	return CarbonGrams(m.EnergyJoules, intensity)
}

// DurationMs returns the duration in fractional milliseconds.
func (m ExecutionMetrics) DurationMs() float64 {
	return float64(m.Duration) / float64(time.Millisecond)
}
