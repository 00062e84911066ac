package domain

import (
	"fmt"
	"strings"
)

// Strategy names a fixed resource-configuration profile for the executor.
// The zero value StrategyNone is only carried by deferral decisions.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyFast
	StrategyEfficient
	StrategyBalanced
)

// Strategies lists the runnable strategies in declared order.
var Strategies = []Strategy{StrategyFast, StrategyEfficient, StrategyBalanced}

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyFast:
		return "fast"
	case StrategyEfficient:
		return "efficient"
	case StrategyBalanced:
		return "balanced"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a case-insensitive name into a runnable Strategy.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Strategies {
		if st.String() == name {
			return st, nil
		}
	}
	return StrategyNone, fmt.Errorf("unknown strategy %q (valid: fast, efficient, balanced)", s)
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(text)), "none") {
		*s = StrategyNone
		return nil
	}
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
