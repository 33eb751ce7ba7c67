package cli

import (
	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/correlator"
)

func newSessionsCmd() *cobra.Command {
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show the merged logical session list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			lf, err := f.toLedgerFilter()
			if err != nil {
				return err
			}
			events, err := a.readFiltered(lf)
			if err != nil {
				return err
			}
			sessions := correlator.Merge(events)
			if f.jsonOut {
				return writeJSON(cmd.OutOrStdout(), sessions)
			}
			return writeTable(cmd.OutOrStdout(), sessions, a.noColor)
		},
	}
	f.addFlags(cmd)
	return cmd
}
