package auth

import (
	"fmt"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/services/auth"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the API key comes from",
		Long: `Show whether an Electricity Maps API key is configured and where it
is read from.

Example:
  carbonq auth status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			_, source, err := auth.ResolveAPIKey(cfg.CarbonAPI.APIKey, auth.DefaultStore())
			out := cmd.OutOrStdout()
			switch {
			case err != nil:
				fmt.Fprintf(out, "%s: error (%v)\n", auth.ProviderElectricityMaps, err)
			case source == auth.KeySourceConfig:
				fmt.Fprintf(out, "%s: logged in (config file)\n", auth.ProviderElectricityMaps)
			case source == auth.KeySourceKeychain:
				fmt.Fprintf(out, "%s: logged in (keychain)\n", auth.ProviderElectricityMaps)
			default:
				fmt.Fprintf(out, "%s: not logged in, using historical data\n", auth.ProviderElectricityMaps)
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
