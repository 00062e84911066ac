package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/carbonq/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Long: `Remove the Electricity Maps API key from the local keychain. A key set
in the config file is not affected.

Example:
  carbonq auth logout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := auth.DefaultStore().DeleteToken(auth.ProviderElectricityMaps)
			switch {
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), "No stored API key.")
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove API key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed Electricity Maps API key.")
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
