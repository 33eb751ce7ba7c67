package cli

import (
	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/model"
)

func newErrorsCmd() *cobra.Command {
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the error rollup and most recent error events",
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
			var errEvents []model.Event
			for _, e := range events {
				if e.Outcome.Status == model.OutcomeError {
					errEvents = append(errEvents, e)
				}
			}
			if f.jsonOut {
				return writeJSON(cmd.OutOrStdout(), errEvents)
			}
			return writeTable(cmd.OutOrStdout(), toEventRows(errEvents), a.noColor)
		},
	}
	f.addFlags(cmd)
	return cmd
}
