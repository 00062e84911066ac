//go:build !linux

package profiler

// NewRAPLCounter reports that RAPL counters are unavailable on this platform.
func NewRAPLCounter(string) (EnergyCounter, error) {
	return nil, ErrNoCounters
}
