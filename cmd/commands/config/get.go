package config

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/util"

	"github.com/spf13/cobra"
)

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Long: "Get a persistent configuration value.\n\n" +
			"If no key is provided, every key is listed with its current value.\n" +
			"Secret values are masked.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  carbonq config get                      # list all values\n" +
			"  carbonq config get carbon_api.zone      # print a single value",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runGet,
		SilenceUsage: true,
	}

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(args) == 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, spec := range config.Keys {
			fmt.Fprintf(w, "%s:\t%s\n", spec.Name, display(spec, cfg))
		}
		return w.Flush()
	}

	key := util.NormalizeKey(args[0])
	spec := config.Lookup(key)
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}

	fmt.Fprintln(cmd.OutOrStdout(), display(*spec, cfg))
	return nil
}

func display(spec config.KeySpec, cfg *config.Config) string {
	value := spec.Get(cfg)
	switch {
	case value == "":
		return "(not set)"
	case spec.Secret:
		return mask(value)
	default:
		return value
	}
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}
