package domain

import (
	"fmt"
	"strings"
)

// Urgency is the caller-declared time sensitivity of a query. Values are
// ordered from most to least time-sensitive.
type Urgency int

const (
	UrgencyCritical Urgency = iota
	UrgencyHigh
	UrgencyMedium
	UrgencyLow
	UrgencyBatch
)

// Urgencies lists every urgency in declared order.
var Urgencies = []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow, UrgencyBatch}

func (u Urgency) String() string {
	switch u {
	case UrgencyCritical:
		return "critical"
	case UrgencyHigh:
		return "high"
	case UrgencyMedium:
		return "medium"
	case UrgencyLow:
		return "low"
	case UrgencyBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// CanDefer reports whether queries at this urgency may be postponed.
func (u Urgency) CanDefer() bool {
	return u == UrgencyLow || u == UrgencyBatch
}

// Valid reports whether u is one of the declared urgencies.
func (u Urgency) Valid() bool {
	return u >= UrgencyCritical && u <= UrgencyBatch
}

// ParseUrgency converts a case-insensitive name into an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, u := range Urgencies {
		if u.String() == name {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown urgency %q (valid: critical, high, medium, low, batch)", s)
}

func (u Urgency) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("invalid urgency %d", int(u))
	}
	return []byte(u.String()), nil
}

func (u *Urgency) UnmarshalText(text []byte) error {
	parsed, err := ParseUrgency(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
