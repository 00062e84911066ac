package deferred

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func CancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending deferred query",
		Long: `Cancel a pending deferred query so it never runs.

In a terminal you are asked to confirm; pass --yes to skip.

Examples:
  carbonq deferred cancel 3f6c1d9e-0b7a-4c55-9d8e-2f1a4b6c7d80
  carbonq deferred cancel 3f6c1d9e-0b7a-4c55-9d8e-2f1a4b6c7d80 --yes`,
		Args:         cobra.ExactArgs(1),
		RunE:         runCancel,
		SilenceUsage: true,
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runCancel(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if id == "" {
		return fmt.Errorf("request id must not be empty")
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		ok, err := tui.Confirm(fmt.Sprintf("Cancel deferred request %s?", id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing cancelled.")
			return nil
		}
	}

	a, err := app.Load(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Engine.Cancel(id) {
		return fmt.Errorf("deferred request %s: %w", id, domain.ErrNotFound)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cancelled deferred request %s.\n", id)
	return nil
}
