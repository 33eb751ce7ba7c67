package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/ledger"
)

func newPruneCmd() *cobra.Command {
	var maxCount int
	var maxAgeDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply count/age retention to rotated ledger files immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			var maxAge time.Duration
			if maxAgeDays > 0 {
				maxAge = time.Duration(maxAgeDays) * 24 * time.Hour
			}
			if err := ledger.Retain(a.ledgerDir, maxCount, maxAge); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pruned rotated ledger files")
			return nil
		},
	}
	cmd.Flags().IntVar(&maxCount, "max-count", ledger.DefaultRetainCount, "maximum number of rotated files to keep")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "maximum age in days of rotated files to keep (0 disables the age cap)")
	return cmd
}
