package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/model"
)

func newDiffCmd() *cobra.Command {
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the diff of the most recent write-class event matching filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			lf, err := f.toLedgerFilter()
			if err != nil {
				return err
			}
			if lf.Risk == "" {
				lf.Risk = model.RiskWrite
			}
			events, err := a.readFiltered(lf)
			if err != nil {
				return err
			}
			for i := len(events) - 1; i >= 0; i-- {
				if events[i].Diff != "" {
					fmt.Fprint(cmd.OutOrStdout(), events[i].Diff)
					return nil
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "(no matching write event with a diff)")
			return nil
		},
	}
	f.addFlags(cmd)
	return cmd
}
