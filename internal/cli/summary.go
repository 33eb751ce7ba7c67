package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/aggregator"
	"github.com/vigilo-sh/vigilo/internal/ledger"
)

func newSummaryCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show global aggregate counts over the full ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			events, err := ledger.ReadAll(a.ledgerDir)
			if err != nil {
				return err
			}
			summary := aggregator.Aggregate(a.decryptEvents(events), time.Local)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func printSummary(w io.Writer, s aggregator.Summary) error {
	fmt.Fprintf(w, "Total calls:  %d\n", s.Total)
	fmt.Fprintf(w, "  reads:      %d\n", s.Reads)
	fmt.Fprintf(w, "  writes:     %d\n", s.Writes)
	fmt.Fprintf(w, "  execs:      %d\n", s.Execs)
	fmt.Fprintf(w, "Errors:       %d\n", s.Errors)
	fmt.Fprintf(w, "Input tokens: %d\n", s.InputTokens)
	fmt.Fprintf(w, "Output tokens:%d\n", s.OutputTokens)
	fmt.Fprintf(w, "Cost (USD):   %.4f\n", s.CostUSD)
	return nil
}
