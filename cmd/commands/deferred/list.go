package deferred

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/carbonq/internal/deferstore"
	"nathanbeddoewebdev/carbonq/internal/domain"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deferred queries",
		Long: `List pending deferred queries in execution order. With --all, list the
most recently updated requests in any state.

Examples:
  carbonq deferred list
  carbonq deferred list --all --limit 50
  carbonq deferred list -o json`,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("all", false, "Include done, failed and cancelled requests")
	cmd.Flags().Int("limit", 25, "Number of requests to display with --all")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type requestJSON struct {
	ID          string    `json:"id"`
	SQL         string    `json:"sql"`
	Urgency     string    `json:"urgency"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	SubmittedAt time.Time `json:"submitted_at"`
	DueAt       time.Time `json:"due_at"`
	Detail      string    `json:"detail,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	repo, err := deferstore.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	var records []deferstore.Record
	if all {
		records, err = repo.ListRecent(limit)
	} else {
		var pending []domain.DeferredRequest
		pending, err = repo.ListPending()
		for _, req := range pending {
			records = append(records, deferstore.Record{Request: req, Status: deferstore.StatusPending})
		}
	}
	if err != nil {
		return err
	}

	if output == "json" {
		items := make([]requestJSON, len(records))
		for i, rec := range records {
			items[i] = requestJSON{
				ID:          rec.Request.ID,
				SQL:         rec.Request.SQL,
				Urgency:     rec.Request.Urgency.String(),
				Status:      string(rec.Status),
				Attempts:    rec.Request.Attempts,
				SubmittedAt: rec.Request.SubmittedAt,
				DueAt:       rec.Request.DueAt,
				Detail:      rec.Detail,
			}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(items)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No deferred queries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tURGENCY\tSTATUS\tDUE\tATTEMPTS\tSQL")
	fmt.Fprintln(w, "--\t-------\t------\t---\t--------\t---")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.Request.ID,
			rec.Request.Urgency,
			rec.Status,
			rec.Request.DueAt.Local().Format("2006-01-02 15:04"),
			rec.Request.Attempts,
			truncate(rec.Request.SQL, 48),
		)
	}
	w.Flush()
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
