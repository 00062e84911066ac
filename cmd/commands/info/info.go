package info

import (
	"encoding/json"
	"fmt"
	"net/url"
	"runtime"
	"text/tabwriter"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/swrcache"

	"github.com/spf13/cobra"
)

// NewCommand returns the "info" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show system and configuration information",
		Long: `Show how carbonq will run on this machine: available threads, the
energy profiling tier, carbon thresholds, the carbon data source and the
database it queries.

Examples:
  carbonq info
  carbonq info -o json`,
		Args:         cobra.NoArgs,
		RunE:         runInfo,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type systemInfo struct {
	Version       string               `json:"go_version"`
	Platform      string               `json:"platform"`
	CPUs          int                  `json:"cpus"`
	MaxThreads    int                  `json:"max_threads"`
	ProfilingTier domain.ProfilingTier `json:"profiling_tier"`
	LowCarbon     float64              `json:"low_carbon_threshold"`
	HighCarbon    float64              `json:"high_carbon_threshold"`
	Zone          string               `json:"zone"`
	KeySource     string               `json:"api_key_source"`
	Driver        string               `json:"database_driver"`
	Target        string               `json:"database"`
	StatePath     string               `json:"state_path"`
	ConfigPath    string               `json:"config_path"`
	CacheDir      string               `json:"cache_dir"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	statePath, err := database.DefaultPath()
	if err != nil {
		return err
	}
	configPath, err := config.Path()
	if err != nil {
		return err
	}

	cfg := a.Config
	thresholds := a.Policy.Thresholds()
	info := systemInfo{
		Version:       runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		CPUs:          runtime.NumCPU(),
		MaxThreads:    cfg.MaxThreads(),
		ProfilingTier: a.Profiler.Tier(),
		LowCarbon:     thresholds.Low,
		HighCarbon:    thresholds.High,
		Zone:          a.Carbon.Zone(),
		KeySource:     string(a.KeySource),
		Driver:        a.TargetDriver(),
		Target:        targetName(cfg, statePath),
		StatePath:     statePath,
		ConfigPath:    configPath,
		CacheDir:      swrcache.DefaultDir(),
	}

	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Go:\t%s (%s)\n", info.Version, info.Platform)
	fmt.Fprintf(w, "CPUs:\t%d\n", info.CPUs)
	fmt.Fprintf(w, "Max threads:\t%d\n", info.MaxThreads)
	fmt.Fprintf(w, "Profiling tier:\t%s\n", info.ProfilingTier)
	fmt.Fprintf(w, "Thresholds:\tlow < %.0f, high > %.0f gCO2/kWh\n", info.LowCarbon, info.HighCarbon)
	fmt.Fprintf(w, "Zone:\t%s\n", info.Zone)
	fmt.Fprintf(w, "API key:\t%s\n", info.KeySource)
	fmt.Fprintf(w, "Database:\t%s (%s)\n", info.Target, info.Driver)
	fmt.Fprintf(w, "State:\t%s\n", info.StatePath)
	fmt.Fprintf(w, "Config:\t%s\n", info.ConfigPath)
	fmt.Fprintf(w, "Cache:\t%s\n", info.CacheDir)
	return w.Flush()
}

// targetName describes the queried database without leaking credentials.
func targetName(cfg *config.Config, statePath string) string {
	if cfg.Database.Path == "" {
		return statePath
	}
	if u, err := url.Parse(cfg.Database.Path); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return cfg.Database.Path
}
