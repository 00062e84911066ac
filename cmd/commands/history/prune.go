package history

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/util"

	"github.com/spf13/cobra"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete executions older than a duration",
		Long: `Delete execution history older than a duration.

Examples:
  carbonq history prune --older-than 30d
  carbonq history prune --older-than 72h`,
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Remove entries older than this duration (e.g. 30d, 72h)")

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

	repo, err := history.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := repo.Prune(olderThan)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d execution(s).\n", removed)
	return nil
}
