package cli

import (
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Generic filtered query over the ledger",
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
			if f.jsonOut {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			return writeTable(cmd.OutOrStdout(), toEventRows(events), a.noColor)
		},
	}
	f.addFlags(cmd)
	return cmd
}
