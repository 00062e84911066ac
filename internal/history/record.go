package history

import (
	"time"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomePartial = "partial"
)

// Record is one completed (or failed) query execution.
type Record struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	SQL      string          `json:"sql"`
	Urgency  domain.Urgency  `json:"urgency"`
	Strategy domain.Strategy `json:"strategy"`
	Reason   string          `json:"reason"`

	CarbonIntensity float64       `json:"carbon_intensity"`
	CarbonSource    domain.Source `json:"carbon_source"`
	CarbonStale     bool          `json:"carbon_stale,omitempty"`

	DurationMs   float64              `json:"duration_ms"`
	EnergyJoules float64              `json:"energy_joules"`
	PowerWatts   float64              `json:"power_watts"`
	CPUPercent   float64              `json:"cpu_percent"`
	MemoryMB     float64              `json:"memory_mb"`
	CarbonGrams  float64              `json:"carbon_grams"`
	Tier         domain.ProfilingTier `json:"tier"`

	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}
