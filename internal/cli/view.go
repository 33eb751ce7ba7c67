package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	verrors "github.com/vigilo-sh/vigilo/internal/errors"
	"github.com/vigilo-sh/vigilo/internal/ledger"
)

func newViewCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "view <event-id>",
		Short: "Show one event by id, pretty-printed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			events, err := ledger.ReadAll(a.ledgerDir)
			if err != nil {
				return err
			}
			events = a.decryptEvents(events)

			want := args[0]
			for _, e := range events {
				if e.ID == want || strings.HasPrefix(e.ID, want) {
					return writeJSON(cmd.OutOrStdout(), e)
				}
			}
			return verrors.New(verrors.KindNotFound, fmt.Sprintf("no event matching id %q", want))
		},
	}
	return cmd
}
