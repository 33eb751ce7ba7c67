package cli

import (
	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/model"
)

// filterFlags holds the --since/--until/--session/--tool/--risk/--last
// flags shared by every read subcommand, grounded on the teacher's
// internal/cli/helpers.TimeFlags.AddFlags/Parse split (flag registration
// separated from resolution).
type filterFlags struct {
	since   string
	until   string
	session string
	tool    string
	risk    string
	last    int
	jsonOut bool
}

func (f *filterFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "only events at or after this date expression (today, yesterday, Nd, Nw, Nm, YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "only events at or before this date expression")
	cmd.Flags().StringVar(&f.session, "session", "", "only events from this session id")
	cmd.Flags().StringVar(&f.tool, "tool", "", "only events calling this tool")
	cmd.Flags().StringVar(&f.risk, "risk", "", "only events of this risk class (read, write, exec)")
	cmd.Flags().IntVar(&f.last, "last", 0, "only the most recent N matching events")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output as JSON instead of a table")
}

func (f *filterFlags) toLedgerFilter() (ledger.Filter, error) {
	var lf ledger.Filter
	if err := resolveSinceUntil(&lf, f.since, f.until); err != nil {
		return lf, err
	}
	lf.Session = f.session
	lf.Tool = f.tool
	lf.Risk = model.Risk(f.risk)
	lf.Limit = f.last
	return lf, nil
}
