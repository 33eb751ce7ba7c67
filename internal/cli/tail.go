package cli

import (
	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/ledger"
)

func newTailCmd() *cobra.Command {
	var n int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent N events (default 20)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			events, err := a.readFiltered(ledger.Filter{Limit: n})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			return writeTable(cmd.OutOrStdout(), toEventRows(events), a.noColor)
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}
