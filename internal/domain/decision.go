package domain

import "time"

// Decision is the policy outcome for a single query. Exactly one of a
// selected strategy or ShouldDefer holds.
type Decision struct {
	Strategy     Strategy   `json:"strategy"`
	ShouldDefer  bool       `json:"should_defer"`
	DeferMinutes int        `json:"defer_minutes"`
	Reason       string     `json:"reason"`
	CarbonTier   CarbonTier `json:"carbon_tier"`

	// Pre-execution estimates from static per-strategy profiles. These are
	// never measurements.
	ExpectedEnergyJoules float64 `json:"expected_energy_joules"`
	ExpectedCarbonGrams  float64 `json:"expected_carbon_grams"`
}

// Selected returns the chosen strategy, or false for a deferral.
func (d Decision) Selected() (Strategy, bool) {
	if d.ShouldDefer || d.Strategy == StrategyNone {
		return StrategyNone, false
	}
	return d.Strategy, true
}

// DeferredRequest is a query waiting for a lower-carbon window.
type DeferredRequest struct {
	ID          string    `json:"id"`
	SQL         string    `json:"sql"`
	Urgency     Urgency   `json:"urgency"`
	SubmittedAt time.Time `json:"submitted_at"`
	DueAt       time.Time `json:"due_at"`

	// Attempts counts how many times this request has been deferred.
	Attempts int `json:"attempts"`

	// Timeout bounds the eventual execution; zero means no limit.
	Timeout time.Duration `json:"timeout,omitempty"`
}
