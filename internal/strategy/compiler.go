// Package strategy maps abstract execution strategies onto concrete
// executor configurations.
package strategy

import (
	"fmt"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

// OptimizationLevel controls how much planning work the executor does up front.
type OptimizationLevel int

const (
	OptimizeNone OptimizationLevel = iota
	OptimizeStandard
	OptimizeEager
)

func (o OptimizationLevel) String() string {
	switch o {
	case OptimizeNone:
		return "none"
	case OptimizeStandard:
		return "standard"
	case OptimizeEager:
		return "eager"
	default:
		return "unknown"
	}
}

// ThreadFloor is the thread count used by the most frugal strategy.
const ThreadFloor = 1

// ExecutionConfig is the executor-facing resource configuration for a run.
type ExecutionConfig struct {
	Strategy     domain.Strategy
	Threads      int
	Optimization OptimizationLevel

	// Speculative allows the executor to do work that may be discarded,
	// such as parallel plan exploration.
	Speculative bool

	// CacheSizeKB bounds the executor's page cache for the run.
	CacheSizeKB int

	// TempStoreMemory keeps temporary structures in memory instead of on disk.
	TempStoreMemory bool
}

// Compiler builds ExecutionConfigs under a static thread ceiling.
type Compiler struct {
	maxThreads int
}

// New returns a compiler for the given thread ceiling.
func New(maxThreads int) (*Compiler, error) {
	if maxThreads < 1 {
		return nil, &domain.ConfigurationError{
			Field:  "engine.max_threads",
			Reason: fmt.Sprintf("must be at least 1, got %d", maxThreads),
		}
	}
	return &Compiler{maxThreads: maxThreads}, nil
}

// MaxThreads returns the configured thread ceiling.
func (c *Compiler) MaxThreads() int {
	return c.maxThreads
}

// Compile returns the configuration template for s. Unknown strategies
// compile to the EFFICIENT template.
func (c *Compiler) Compile(s domain.Strategy) ExecutionConfig {
	switch s {
	case domain.StrategyFast:
		return ExecutionConfig{
			Strategy:        s,
			Threads:         c.maxThreads,
			Optimization:    OptimizeEager,
			Speculative:     true,
			CacheSizeKB:     64 * 1024,
			TempStoreMemory: true,
		}
	case domain.StrategyBalanced:
		return ExecutionConfig{
			Strategy:        s,
			Threads:         max(ThreadFloor, c.maxThreads/2),
			Optimization:    OptimizeStandard,
			CacheSizeKB:     16 * 1024,
			TempStoreMemory: true,
		}
	case domain.StrategyEfficient:
		fallthrough
	default:
		return ExecutionConfig{
			Strategy:     domain.StrategyEfficient,
			Threads:      ThreadFloor,
			Optimization: OptimizeNone,
			CacheSizeKB:  2 * 1024,
		}
	}
}

// All returns every runnable strategy in declared order.
func (c *Compiler) All() []domain.Strategy {
	out := make([]domain.Strategy, len(domain.Strategies))
	copy(out, domain.Strategies)
	return out
}
