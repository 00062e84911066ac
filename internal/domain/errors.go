package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying failures across components.
// Components wrap these so callers can branch on the category without
// importing driver or feed specifics.
//
//	return fmt.Errorf("query failed: %w", domain.ErrExecutionFailed)
var (
	// ErrExecutionFailed indicates the external executor raised or timed out.
	// It is the only runtime error that reaches callers of Execute.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrConfiguration indicates invalid startup configuration, such as
	// inverted thresholds or a zero thread ceiling.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrSignalUnavailable indicates the live carbon feed could not be
	// reached. It is absorbed by the carbon source and only logged.
	ErrSignalUnavailable = errors.New("carbon signal unavailable")

	// ErrProfilingDegraded indicates hardware energy counters could not be
	// read and the profiler fell back to estimation.
	ErrProfilingDegraded = errors.New("profiling degraded")

	// ErrDeferralExhausted tags a request that hit its re-defer limit and
	// was forced to run.
	ErrDeferralExhausted = errors.New("deferral exhausted")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ConfigurationError describes a single invalid configuration field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
