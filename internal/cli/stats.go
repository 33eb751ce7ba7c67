package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/aggregator"
)

func newStatsCmd() *cobra.Command {
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the full aggregate breakdown (per-model/tool/file/project/timeline)",
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
			summary := aggregator.Aggregate(events, time.Local)
			if f.jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			if err := printSummary(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			return writeTable(cmd.OutOrStdout(), summary.ByTool, a.noColor)
		},
	}
	f.addFlags(cmd)
	return cmd
}
