package profiler

import "errors"

// ErrNoCounters is returned when no hardware energy counters are readable.
var ErrNoCounters = errors.New("no RAPL energy counters available")

// EnergyCounter reads a fixed set of energy zones. Each zone is a
// monotonically increasing counter that wraps to zero after its own max.
type EnergyCounter interface {
	// Read returns the cumulative energy of every zone in microjoules.
	Read() ([]uint64, error)

	// Max returns the value at which each zone wraps, in Read order.
	Max() []uint64
}

// energyUsed sums the per-zone deltas between two reads. Zones wrap
// independently, so each is compared against its own range.
func energyUsed(start, end, max []uint64) uint64 {
	var total uint64
	for i := range start {
		if i >= len(end) {
			break
		}
		var zoneMax uint64
		if i < len(max) {
			zoneMax = max[i]
		}
		total += energyDelta(start[i], end[i], zoneMax)
	}
	return total
}

// energyDelta returns the microjoules consumed between two reads of one
// zone, accounting for a single wraparound.
func energyDelta(start, end, max uint64) uint64 {
	if end >= start {
		return end - start
	}
	if max < start {
		// Counter reset without a known range; only the part after the
		// reset is measurable.
		return end
	}
	return (max - start) + end
}
