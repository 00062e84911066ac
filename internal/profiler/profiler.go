// Package profiler measures the energy and resource cost of a single
// execution. It reads hardware RAPL counters when available and otherwise
// estimates power from process CPU usage.
package profiler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

const (
	DefaultBasePowerWatts = 10.0
	DefaultWattsPerCore   = 15.0

	defaultSampleInterval = 25 * time.Millisecond
)

// Config controls the measurement tiers.
type Config struct {
	Enabled              bool
	UseRAPL              bool
	FallbackToEstimation bool
	BasePowerWatts       float64
	WattsPerCore         float64
}

// DefaultConfig enables hardware counters with estimation as fallback.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		UseRAPL:              true,
		FallbackToEstimation: true,
		BasePowerWatts:       DefaultBasePowerWatts,
		WattsPerCore:         DefaultWattsPerCore,
	}
}

// Profiler wraps executions with energy measurement. The active tier is
// shared by all measurements on the instance and only ever degrades.
type Profiler struct {
	cfg      Config
	sampler  Sampler
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	counter EnergyCounter
	tier    domain.ProfilingTier
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithCounter supplies the hardware counter instead of probing sysfs.
func WithCounter(c EnergyCounter) Option {
	return func(p *Profiler) { p.counter = c }
}

// WithSampler replaces the /proc sampler.
func WithSampler(s Sampler) Option {
	return func(p *Profiler) { p.sampler = s }
}

// WithSampleInterval sets how often peak memory is sampled during a run.
func WithSampleInterval(d time.Duration) Option {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger used for tier degradation.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns a profiler. When cfg.UseRAPL is set and no counter was
// supplied, the package RAPL zones are probed once.
func New(cfg Config, opts ...Option) *Profiler {
	p := &Profiler{
		cfg:      cfg,
		sampler:  NewProcSampler(),
		interval: defaultSampleInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.BasePowerWatts < 0 {
		p.cfg.BasePowerWatts = 0
	}
	if p.cfg.WattsPerCore < 0 {
		p.cfg.WattsPerCore = 0
	}

	switch {
	case !cfg.Enabled:
		p.counter = nil
		p.tier = domain.TierDisabled
	case cfg.UseRAPL:
		if p.counter == nil {
			c, err := NewRAPLCounter("")
			if err != nil {
				p.logger.Info("hardware energy counters unavailable", zap.Error(err))
			} else {
				p.counter = c
			}
		}
		if p.counter != nil {
			p.tier = domain.TierHardware
		} else {
			p.tier = p.softwareTier()
		}
	default:
		p.counter = nil
		p.tier = p.softwareTier()
	}
	return p
}

// Tier returns the active measurement tier.
func (p *Profiler) Tier() domain.ProfilingTier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tier
}

// Measure runs fn and returns its measured cost. Measurement stops on
// every exit path; a panic in fn is re-raised after sampling completes.
// fn's error is returned unchanged. Sampling failures zero the affected
// fields and never fail the call.
func (p *Profiler) Measure(ctx context.Context, threads int, fn func(context.Context) error) (metrics domain.ExecutionMetrics, err error) {
	if threads < 1 {
		threads = 1
	}

	m := p.start(threads)
	defer func() {
		r := recover()
		metrics = m.finish()
		if r != nil {
			panic(r)
		}
	}()

	err = fn(ctx)
	return metrics, err
}

func (p *Profiler) softwareTier() domain.ProfilingTier {
	if p.cfg.FallbackToEstimation {
		return domain.TierEstimated
	}
	return domain.TierDisabled
}

// readCounter reads the hardware counter, degrading the tier permanently
// on failure.
func (p *Profiler) readCounter() ([]uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tier != domain.TierHardware || p.counter == nil {
		return nil, false
	}
	v, err := p.counter.Read()
	if err != nil {
		p.tier = p.softwareTier()
		p.logger.Warn("energy counter read failed, degrading profiler",
			zap.String("tier", string(p.tier)),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrProfilingDegraded, err)),
		)
		return nil, false
	}
	return v, true
}

func (p *Profiler) counterMax() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counter == nil {
		return nil
	}
	return p.counter.Max()
}

// measurement holds the state of one in-flight Measure call.
type measurement struct {
	p       *Profiler
	threads int
	began   time.Time

	energyStart []uint64
	hardware    bool

	before   Sample
	sampled  bool
	peakRSS  uint64
	peakMu   sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	sampling bool
}

func (p *Profiler) start(threads int) *measurement {
	m := &measurement{p: p, threads: threads, began: time.Now()}
	if !p.cfg.Enabled {
		return m
	}

	m.energyStart, m.hardware = p.readCounter()

	if s, err := p.sampler.Sample(); err == nil {
		m.before = s
		m.sampled = true
		m.peakRSS = s.RSSBytes
	} else {
		p.logger.Debug("process sample failed", zap.Error(err))
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.sampling = true
	go m.watchPeak()
	return m
}

func (m *measurement) watchPeak() {
	defer close(m.done)
	ticker := time.NewTicker(m.p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if s, err := m.p.sampler.Sample(); err == nil {
				m.observeRSS(s.RSSBytes)
			}
		}
	}
}

func (m *measurement) observeRSS(rss uint64) {
	m.peakMu.Lock()
	if rss > m.peakRSS {
		m.peakRSS = rss
	}
	m.peakMu.Unlock()
}

func (m *measurement) finish() domain.ExecutionMetrics {
	elapsed := time.Since(m.began)
	out := domain.ExecutionMetrics{Duration: elapsed, Tier: domain.TierDisabled}
	if !m.p.cfg.Enabled {
		return out
	}

	if m.sampling {
		close(m.stop)
		<-m.done
	}

	seconds := elapsed.Seconds()
	if after, err := m.p.sampler.Sample(); err == nil {
		m.observeRSS(after.RSSBytes)
		if m.sampled && seconds > 0 {
			cpu := (after.CPUSeconds - m.before.CPUSeconds) / (seconds * float64(m.threads)) * 100
			out.CPUPercent = clamp(cpu, 0, 100)
		}
	}
	m.peakMu.Lock()
	out.MemoryMB = float64(m.peakRSS) / (1024 * 1024)
	m.peakMu.Unlock()

	if m.hardware {
		if end, ok := m.p.readCounter(); ok {
			uj := energyUsed(m.energyStart, end, m.p.counterMax())
			out.EnergyJoules = float64(uj) / 1e6
			if seconds > 0 {
				out.PowerWatts = out.EnergyJoules / seconds
			}
			out.Tier = domain.TierHardware
			return out
		}
	}

	if m.p.cfg.FallbackToEstimation {
		out.PowerWatts = m.p.cfg.BasePowerWatts + out.CPUPercent/100*m.p.cfg.WattsPerCore*float64(m.threads)
		out.EnergyJoules = out.PowerWatts * seconds
		out.Tier = domain.TierEstimated
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
