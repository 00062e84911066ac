package config

import (
	"nathanbeddoewebdev/carbonq/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage carbonq configuration",
		Long: "View and modify persistent carbonq settings.\n\n" +
			"Configuration is stored at ~/.config/carbonq/config.json.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
