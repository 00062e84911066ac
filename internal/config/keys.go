package config

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/policy"
	"nathanbeddoewebdev/carbonq/internal/util"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the dotted key name (e.g. "carbon_api.zone").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Secret keys are masked by `config get`.
	Secret bool

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set parses and applies a value for this key to the given Config (in
	// memory only; the caller is responsible for calling Save).
	Set func(cfg *Config, value string) error
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = buildKeys()

func buildKeys() []KeySpec {
	keys := []KeySpec{
		stringKey("database.path", "SQLite file or postgres connection string",
			func(c *Config) *string { return &c.Database.Path }),
		{
			Name:        "database.driver",
			Description: "Database driver: sqlite or postgres",
			Get:         func(c *Config) string { return c.Database.Driver },
			Set: func(c *Config, v string) error {
				v = strings.ToLower(strings.TrimSpace(v))
				switch v {
				case "sqlite", "postgres", "postgresql":
					c.Database.Driver = v
					return nil
				}
				return fmt.Errorf("unsupported driver %q (valid: sqlite, postgres)", v)
			},
		},
		{
			Name:        "carbon_api.api_key",
			Description: "Electricity Maps API key (prefer `carbonq auth login`)",
			Secret:      true,
			Get:         func(c *Config) string { return c.CarbonAPI.APIKey },
			Set:         func(c *Config, v string) error { c.CarbonAPI.APIKey = strings.TrimSpace(v); return nil },
		},
		{
			Name:        "carbon_api.zone",
			Description: "Grid zone identifier, e.g. US-CAL-CISO",
			Get:         func(c *Config) string { return c.CarbonAPI.Zone },
			Set: func(c *Config, v string) error {
				zone := util.NormalizeZone(v)
				if err := util.ValidateZone(zone); err != nil {
					return err
				}
				c.CarbonAPI.Zone = zone
				return nil
			},
		},
		stringKey("carbon_api.base_url", "Carbon feed base URL override",
			func(c *Config) *string { return &c.CarbonAPI.BaseURL }),
		intKey("carbon_api.cache_minutes", "Minutes a live reading is served from cache", 0,
			func(c *Config) *int { return &c.CarbonAPI.CacheMinutes }),
		boolKey("carbon_api.fallback_to_historical", "Use the historical model when the feed is unavailable",
			func(c *Config) *bool { return &c.CarbonAPI.FallbackToHistorical }),
		intKey("carbon_api.timeout_seconds", "Per-request timeout for the carbon feed", 0,
			func(c *Config) *int { return &c.CarbonAPI.TimeoutSeconds }),
		boolKey("energy_profiling.enabled", "Measure energy for each execution",
			func(c *Config) *bool { return &c.EnergyProfiling.Enabled }),
		boolKey("energy_profiling.use_rapl", "Read Intel RAPL counters when available",
			func(c *Config) *bool { return &c.EnergyProfiling.UseRAPL }),
		boolKey("energy_profiling.fallback_to_estimation", "Estimate energy when counters are unavailable",
			func(c *Config) *bool { return &c.EnergyProfiling.FallbackToEstimation }),
		floatKey("energy_profiling.base_power_watts", "Idle power of the host in watts",
			func(c *Config) *float64 { return &c.EnergyProfiling.BasePowerWatts }),
		floatKey("energy_profiling.watts_per_core", "Power per fully busy core in watts",
			func(c *Config) *float64 { return &c.EnergyProfiling.WattsPerCore }),
		floatKey("thresholds.low_carbon", "Intensity below which the grid is low carbon (gCO2/kWh)",
			func(c *Config) *float64 { return &c.Thresholds.Low }),
		floatKey("thresholds.high_carbon", "Intensity at or above which the grid is high carbon (gCO2/kWh)",
			func(c *Config) *float64 { return &c.Thresholds.High }),
		intKey("engine.max_threads", "Thread ceiling for query execution (0 = all cores)", 0,
			func(c *Config) *int { return &c.Engine.MaxThreads }),
		intKey("engine.max_redefers", "Deferrals before a query is forced to run", 1,
			func(c *Config) *int { return &c.Engine.MaxRedefers }),
		intKey("engine.poll_interval_seconds", "How often the deferral loop checks for due queries", 1,
			func(c *Config) *int { return &c.Engine.PollIntervalSeconds }),
		intKey("engine.forecast_hours", "Hours of forecast searched for a cleaner window (1-72)", 1,
			func(c *Config) *int { return &c.Engine.ForecastHours }),
		{
			Name:        "logging.level",
			Description: "Log level: debug, info, warn or error",
			Get:         func(c *Config) string { return c.Logging.Level },
			Set: func(c *Config, v string) error {
				v = strings.ToLower(strings.TrimSpace(v))
				if _, err := zapcore.ParseLevel(v); err != nil {
					return err
				}
				c.Logging.Level = v
				return nil
			},
		},
		stringKey("logging.file", "Write logs to this file instead of stderr",
			func(c *Config) *string { return &c.Logging.File }),
		stringKey("metrics.output_dir", "Directory for exported execution history",
			func(c *Config) *string { return &c.Metrics.OutputDir }),
		boolKey("metrics.auto_save", "Export history periodically while serving",
			func(c *Config) *bool { return &c.Metrics.AutoSave }),
		intKey("metrics.save_interval_minutes", "Minutes between history exports", 1,
			func(c *Config) *int { return &c.Metrics.SaveIntervalMinutes }),
	}

	for _, s := range domain.Strategies {
		keys = append(keys,
			estimateKey(s, "power_watts", "Estimated power draw", func(p *policy.Profile) *float64 { return &p.PowerWatts }),
			estimateKey(s, "duration_seconds", "Estimated runtime", func(p *policy.Profile) *float64 { return &p.DurationSeconds }),
		)
	}
	return keys
}

func stringKey(name, desc string, field func(*Config) *string) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get:         func(c *Config) string { return *field(c) },
		Set: func(c *Config, v string) error {
			*field(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

func intKey(name, desc string, lowest int, field func(*Config) *int) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get:         func(c *Config) string { return strconv.Itoa(*field(c)) },
		Set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s must be an integer", name)
			}
			if n < lowest {
				return fmt.Errorf("%s must be at least %d", name, lowest)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name, desc string, field func(*Config) *float64) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get:         func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		Set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return fmt.Errorf("%s must be a non-negative number", name)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name, desc string, field func(*Config) *bool) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get:         func(c *Config) string { return strconv.FormatBool(*field(c)) },
		Set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s must be true or false", name)
			}
			*field(c) = b
			return nil
		},
	}
}

// estimateKey addresses one field of a per-strategy estimate, seeding the
// entry from policy defaults on first write.
func estimateKey(s domain.Strategy, field, desc string, ptr func(*policy.Profile) *float64) KeySpec {
	name := "estimates." + s.String() + "." + field
	return KeySpec{
		Name:        name,
		Description: fmt.Sprintf("%s for the %s strategy", desc, s),
		Get: func(c *Config) string {
			p, ok := c.Estimates[s.String()]
			if !ok {
				p = policy.DefaultProfiles()[s]
			}
			return strconv.FormatFloat(*ptr(&p), 'g', -1, 64)
		},
		Set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return fmt.Errorf("%s must be a non-negative number", name)
			}
			if c.Estimates == nil {
				c.Estimates = make(map[string]policy.Profile)
			}
			p, ok := c.Estimates[s.String()]
			if !ok {
				p = policy.DefaultProfiles()[s]
			}
			*ptr(&p) = f
			c.Estimates[s.String()] = p
			return nil
		},
	}
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
