package history

import (
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/util"

	"github.com/spf13/cobra"
)

func ExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export execution history as JSON",
		Long: `Export execution history as a JSON array.

By default the file is written to metrics.output_dir, or an exports
directory next to the config file. Use --stdout to print instead.

Examples:
  carbonq history export
  carbonq history export --since 7d --dir ./reports
  carbonq history export --stdout > history.json`,
		Args:         cobra.NoArgs,
		RunE:         runExport,
		SilenceUsage: true,
	}

	cmd.Flags().String("since", "", "Only export entries newer than this duration (e.g. 7d, 24h)")
	cmd.Flags().String("dir", "", "Directory to write the export to (default: metrics.output_dir)")
	cmd.Flags().Bool("stdout", false, "Write the export to stdout")

	return cmd
}

// exportAll is the lookback used when --since is omitted.
const exportAll = 100 * 365 * 24 * time.Hour

func runExport(cmd *cobra.Command, args []string) error {
	window := exportAll
	if raw, _ := cmd.Flags().GetString("since"); strings.TrimSpace(raw) != "" {
		d, err := util.ParseAge(raw)
		if err != nil {
			return err
		}
		window = d
	}
	toStdout, _ := cmd.Flags().GetBool("stdout")
	dir, _ := cmd.Flags().GetString("dir")

	if !toStdout && dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if dir, err = cfg.ExportDir(); err != nil {
			return err
		}
	}

	repo, err := history.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	now := time.Now()
	records, err := repo.ListSince(now.Add(-window))
	if err != nil {
		return err
	}

	if toStdout {
		return history.Export(cmd.OutOrStdout(), records)
	}

	path, err := history.ExportToDir(dir, records, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d execution(s) to %s\n", len(records), path)
	return nil
}
