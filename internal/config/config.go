// Package config handles persistent configuration for carbonq.
//
// Configuration is stored as JSON at ~/.config/carbonq/config.json (or the
// platform-equivalent path returned by os.UserConfigDir). Missing keys take
// the values from Default, and the file is read once at startup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap/zapcore"

	"nathanbeddoewebdev/carbonq/internal/carbon"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/policy"
	"nathanbeddoewebdev/carbonq/internal/profiler"
	"nathanbeddoewebdev/carbonq/internal/util"
)

const (
	appDir   = "carbonq"
	fileName = "config.json"
)

// pathOverride, when non-empty, replaces the default config file path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the config file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Config holds every option carbonq reads at startup.
type Config struct {
	Database        DatabaseConfig            `json:"database"`
	CarbonAPI       CarbonAPIConfig           `json:"carbon_api"`
	EnergyProfiling EnergyProfilingConfig     `json:"energy_profiling"`
	Thresholds      policy.Thresholds         `json:"thresholds"`
	Engine          EngineConfig              `json:"engine"`
	Logging         LoggingConfig             `json:"logging"`
	Metrics         MetricsConfig             `json:"metrics"`
	Estimates       map[string]policy.Profile `json:"estimates,omitempty"`
}

// DatabaseConfig selects the database queries run against.
type DatabaseConfig struct {
	// Path is a SQLite file path or, for postgres, a connection string.
	// Empty uses the default SQLite location.
	Path   string `json:"path,omitempty"`
	Driver string `json:"driver"`
}

// CarbonAPIConfig configures the live carbon intensity feed.
type CarbonAPIConfig struct {
	APIKey               string `json:"api_key,omitempty"`
	Zone                 string `json:"zone"`
	BaseURL              string `json:"base_url,omitempty"`
	CacheMinutes         int    `json:"cache_minutes"`
	FallbackToHistorical bool   `json:"fallback_to_historical"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
}

// EnergyProfilingConfig mirrors profiler.Config.
type EnergyProfilingConfig struct {
	Enabled              bool    `json:"enabled"`
	UseRAPL              bool    `json:"use_rapl"`
	FallbackToEstimation bool    `json:"fallback_to_estimation"`
	BasePowerWatts       float64 `json:"base_power_watts"`
	WattsPerCore         float64 `json:"watts_per_core"`
}

// EngineConfig tunes the engine and its deferral loop.
type EngineConfig struct {
	// MaxThreads of zero uses every available core.
	MaxThreads          int `json:"max_threads"`
	MaxRedefers         int `json:"max_redefers"`
	PollIntervalSeconds int `json:"poll_interval_seconds"`

	// ForecastHours is how far ahead the policy looks for a cleaner window.
	ForecastHours int `json:"forecast_hours"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `json:"level"`

	// File receives log output when set; otherwise logs go to stderr.
	File string `json:"file,omitempty"`
}

// MetricsConfig controls periodic history export while serving.
type MetricsConfig struct {
	OutputDir           string `json:"output_dir,omitempty"`
	AutoSave            bool   `json:"auto_save"`
	SaveIntervalMinutes int    `json:"save_interval_minutes"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		CarbonAPI: CarbonAPIConfig{
			Zone:                 carbon.DefaultZone,
			CacheMinutes:         5,
			FallbackToHistorical: true,
			TimeoutSeconds:       5,
		},
		EnergyProfiling: EnergyProfilingConfig{
			Enabled:              true,
			UseRAPL:              true,
			FallbackToEstimation: true,
			BasePowerWatts:       profiler.DefaultBasePowerWatts,
			WattsPerCore:         profiler.DefaultWattsPerCore,
		},
		Thresholds: policy.DefaultThresholds(),
		Engine: EngineConfig{
			MaxRedefers:         3,
			PollIntervalSeconds: 30,
			ForecastHours:       24,
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{
			AutoSave:            true,
			SaveIntervalMinutes: 60,
		},
	}
}

// Path returns the absolute path to the config file.
// If SetPath has been called, that value is returned instead.
// Otherwise it uses os.UserConfigDir which resolves to
// ~/Library/Application Support on macOS, ~/.config on Linux, and
// %AppData% on Windows.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the config file from disk and returns the parsed Config.
// If the file does not exist, Default() is returned (not an error).
func Load() (*Config, error) {
	return loadFrom("")
}

func loadFrom(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk, creating the parent directory if needed.
func (c *Config) Save() error {
	return c.saveTo("")
}

func (c *Config) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	// The file may hold an API key.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads the config from the given path. Intended for testing.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

// SaveTo writes the config to the given path. Intended for testing.
func (c *Config) SaveTo(path string) error {
	return c.saveTo(path)
}

// Validate reports the first invalid option as a *domain.ConfigurationError.
func (c *Config) Validate() error {
	pc, err := c.PolicyConfig()
	if err != nil {
		return err
	}
	if _, err := policy.New(pc); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return invalid("database.driver", fmt.Sprintf("unsupported driver %q", c.Database.Driver))
	}
	if (c.Database.Driver == "postgres" || c.Database.Driver == "postgresql") && c.Database.Path == "" {
		return invalid("database.path", "a connection string is required for postgres")
	}

	if err := util.ValidateZone(c.CarbonAPI.Zone); err != nil {
		return invalid("carbon_api.zone", err.Error())
	}

	checks := []struct {
		field string
		ok    bool
	}{
		{"carbon_api.cache_minutes", c.CarbonAPI.CacheMinutes >= 0},
		{"carbon_api.timeout_seconds", c.CarbonAPI.TimeoutSeconds >= 0},
		{"energy_profiling.base_power_watts", c.EnergyProfiling.BasePowerWatts >= 0},
		{"energy_profiling.watts_per_core", c.EnergyProfiling.WattsPerCore >= 0},
		{"engine.max_threads", c.Engine.MaxThreads >= 0},
		{"engine.max_redefers", c.Engine.MaxRedefers >= 1},
		{"engine.poll_interval_seconds", c.Engine.PollIntervalSeconds >= 1},
		{"engine.forecast_hours", c.Engine.ForecastHours >= 1 && c.Engine.ForecastHours <= 72},
		{"metrics.save_interval_minutes", c.Metrics.SaveIntervalMinutes >= 1 || !c.Metrics.AutoSave},
	}
	for _, chk := range checks {
		if !chk.ok {
			return invalid(chk.field, "value out of range")
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", err.Error())
	}
	return nil
}

// PolicyConfig converts thresholds and estimates into a policy.Config.
func (c *Config) PolicyConfig() (policy.Config, error) {
	pc := policy.Config{Thresholds: c.Thresholds}
	if len(c.Estimates) > 0 {
		pc.Profiles = make(map[domain.Strategy]policy.Profile, len(c.Estimates))
		for name, p := range c.Estimates {
			s, err := domain.ParseStrategy(name)
			if err != nil {
				return policy.Config{}, invalid("estimates."+name, err.Error())
			}
			pc.Profiles[s] = p
		}
	}
	return pc, nil
}

// CarbonConfig returns the signal source settings.
func (c *Config) CarbonConfig(cacheDir string) carbon.Config {
	return carbon.Config{
		Zone:                 c.CarbonAPI.Zone,
		CacheTTL:             time.Duration(c.CarbonAPI.CacheMinutes) * time.Minute,
		FallbackToHistorical: c.CarbonAPI.FallbackToHistorical,
		CacheDir:             cacheDir,
	}
}

// FeedConfig returns the Electricity Maps client settings for apiKey.
func (c *Config) FeedConfig(apiKey string) carbon.ElectricityMapsConfig {
	return carbon.ElectricityMapsConfig{
		BaseURL: c.CarbonAPI.BaseURL,
		APIKey:  apiKey,
		Timeout: time.Duration(c.CarbonAPI.TimeoutSeconds) * time.Second,
	}
}

// ProfilerConfig returns the profiler settings.
func (c *Config) ProfilerConfig() profiler.Config {
	p := c.EnergyProfiling
	return profiler.Config{
		Enabled:              p.Enabled,
		UseRAPL:              p.UseRAPL,
		FallbackToEstimation: p.FallbackToEstimation,
		BasePowerWatts:       p.BasePowerWatts,
		WattsPerCore:         p.WattsPerCore,
	}
}

// MaxThreads resolves engine.max_threads, where zero means every core.
func (c *Config) MaxThreads() int {
	if c.Engine.MaxThreads > 0 {
		return c.Engine.MaxThreads
	}
	return runtime.NumCPU()
}

// PollInterval returns the deferral loop's poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// ExportDir returns metrics.output_dir, or an "exports" directory next to
// the config file when unset.
func (c *Config) ExportDir() (string, error) {
	if c.Metrics.OutputDir != "" {
		return c.Metrics.OutputDir, nil
	}
	path, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "exports"), nil
}

func invalid(field, reason string) error {
	return &domain.ConfigurationError{Field: field, Reason: reason}
}
