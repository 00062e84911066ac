package profiler

import (
	"fmt"
	"strings"

	"github.com/prometheus/procfs/sysfs"
)

// raplCounter reads the package-level RAPL zones. Sub-zones (core, uncore,
// dram) are already included in their package's counter.
type raplCounter struct {
	zones []sysfs.RaplZone
	max   []uint64
}

// NewRAPLCounter opens the package RAPL zones under sysfsPath. An empty
// path uses /sys.
func NewRAPLCounter(sysfsPath string) (EnergyCounter, error) {
	var (
		fs  sysfs.FS
		err error
	)
	if sysfsPath == "" {
		fs, err = sysfs.NewDefaultFS()
	} else {
		fs, err = sysfs.NewFS(sysfsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open sysfs: %w", err)
	}
	zones, err := sysfs.GetRaplZones(fs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCounters, err)
	}

	c := &raplCounter{}
	for _, z := range zones {
		if !strings.HasPrefix(z.Name, "package") {
			continue
		}
		c.zones = append(c.zones, z)
		c.max = append(c.max, z.MaxMicrojoules)
	}
	if len(c.zones) == 0 {
		return nil, ErrNoCounters
	}

	// Unprivileged reads fail on recent kernels; surface that now rather
	// than on the first measurement.
	if _, err := c.Read(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCounters, err)
	}
	return c, nil
}

func (c *raplCounter) Read() ([]uint64, error) {
	out := make([]uint64, len(c.zones))
	for i, z := range c.zones {
		uj, err := z.GetEnergyMicrojoules()
		if err != nil {
			return nil, fmt.Errorf("read %s-%d: %w", z.Name, z.Index, err)
		}
		out[i] = uj
	}
	return out, nil
}

func (c *raplCounter) Max() []uint64 {
	return c.max
}
