package deferred

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/deferstore"
	"nathanbeddoewebdev/carbonq/internal/util"

	"github.com/spf13/cobra"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished deferred requests older than a duration",
		Long: `Delete done, failed and cancelled deferred requests last updated before
the given age. Pending requests are never removed.

Examples:
  carbonq deferred prune --older-than 30d
  carbonq deferred prune --older-than 72h`,
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Remove requests older than this duration (e.g. 30d, 72h)")

	return cmd
}

func runPrune(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("older-than")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("--older-than is required")
	}
	olderThan, err := util.ParseAge(raw)
	if err != nil {
		return err
	}

	repo, err := deferstore.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := repo.DeleteOlderThan(olderThan)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d deferred request(s).\n", removed)
	return nil
}
