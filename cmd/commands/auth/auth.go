package auth

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the carbon data API key",
		Long: `Manage the Electricity Maps API key.

The key is stored in the local keychain. A key set in the config file
(carbon_api.api_key) takes precedence. Without a key, carbonq uses its
built-in historical model.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(StatusCommand())
	cmd.AddCommand(LogoutCommand())

	return cmd
}
