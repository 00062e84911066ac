package config

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value. The whole configuration is\n" +
			"validated before it is saved.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  carbonq config set carbon_api.zone DE\n" +
			"  carbonq config set thresholds.low_carbon 200\n" +
			"  carbonq config set database.path ./warehouse.db",
		Args: cobra.ExactArgs(2),
		Run:  runSet,
	}

	return cmd
}

func runSet(cmd *cobra.Command, args []string) {
	key := util.NormalizeKey(args[0])
	value := args[1]

	spec := config.Lookup(key)
	if spec == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: unknown configuration key %q\n", args[0])
		fmt.Fprintf(cmd.ErrOrStderr(), "Valid keys: %s\n", strings.Join(config.KeyNames(), ", "))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	if err := spec.Set(cfg, value); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: invalid value for %s: %v\n", spec.Name, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	shown := spec.Get(cfg)
	if spec.Secret {
		shown = mask(shown)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, shown)
}
