package engine

import (
	"fmt"
	"strings"
)

// explain renders the inputs and result of a decision for humans.
func (e *Engine) explain(out *Outcome) string {
	var b strings.Builder
	th := e.policy.Thresholds()
	c := out.Carbon
	d := out.Decision

	fmt.Fprintf(&b, "carbon: %.1f gCO2/kWh (%s", c.Value, c.Source)
	if c.Stale {
		b.WriteString(", stale")
	}
	fmt.Fprintf(&b, ") at %s\n", c.Timestamp.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "tier: %s (low < %.0f, high >= %.0f)\n", d.CarbonTier, th.Low, th.High)
	fmt.Fprintf(&b, "decision: %s\n", d.Reason)

	if out.Deferred != nil {
		fmt.Fprintf(&b, "deferred: %s until %s\n", out.Deferred.ID, out.Deferred.DueAt.Format("2006-01-02 15:04 MST"))
	} else {
		cfg := e.compiler.Compile(d.Strategy)
		fmt.Fprintf(&b, "config: %d threads, %s optimization, %d KiB cache\n",
			cfg.Threads, cfg.Optimization, cfg.CacheSizeKB)
	}
	fmt.Fprintf(&b, "expected: %.2f J, %.4f gCO2\n", d.ExpectedEnergyJoules, d.ExpectedCarbonGrams)

	if m := out.Metrics; m != nil {
		fmt.Fprintf(&b, "measured: %.2f J over %.1f ms (%s), %.4f gCO2",
			m.EnergyJoules, m.DurationMs(), m.Tier, m.CarbonGrams(c.Value))
		if m.Partial {
			b.WriteString(", partial")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
