package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"nathanbeddoewebdev/carbonq/internal/carbon"
	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/services/auth"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const verifyTimeout = 10 * time.Second

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an Electricity Maps API key",
		Long: `Store an Electricity Maps API key in the local keychain.

With --verify the key is checked against the live API for the configured
zone before it is saved.

Examples:
  carbonq auth login
  carbonq auth login --token em_xxx --verify`,
		Args:         cobra.NoArgs,
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "API key (optional, overrides prompt)")
	cmd.Flags().Bool("verify", false, "Check the key against the live API before saving")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	token = strings.TrimSpace(token)
	if token == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Enter API key: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		token = strings.TrimSpace(string(bytes))
	}
	if token == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		if err := verifyKey(cmd.Context(), token); err != nil {
			return err
		}
	}

	store := auth.DefaultStore()
	if err := store.SetToken(auth.ProviderElectricityMaps, token); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Saved Electricity Maps API key.")
	return nil
}

func verifyKey(ctx context.Context, token string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	feed := carbon.NewElectricityMapsFeed(cfg.FeedConfig(token))
	if _, err := feed.Latest(ctx, cfg.CarbonAPI.Zone); err != nil {
		return fmt.Errorf("API key check failed: %w", err)
	}
	return nil
}
