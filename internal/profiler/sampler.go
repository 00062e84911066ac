package profiler

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Sample is a point-in-time view of the process's resource usage.
type Sample struct {
	CPUSeconds float64
	RSSBytes   uint64
}

// Sampler reads process resource usage.
type Sampler interface {
	Sample() (Sample, error)
}

// procSampler reads /proc/self/stat.
type procSampler struct{}

// NewProcSampler returns a Sampler for the current process.
func NewProcSampler() Sampler {
	return procSampler{}
}

func (procSampler) Sample() (Sample, error) {
	p, err := procfs.Self()
	if err != nil {
		return Sample{}, fmt.Errorf("open /proc/self: %w", err)
	}
	stat, err := p.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("read /proc/self/stat: %w", err)
	}
	rss := stat.ResidentMemory()
	if rss < 0 {
		rss = 0
	}
	return Sample{CPUSeconds: stat.CPUTime(), RSSBytes: uint64(rss)}, nil
}
