// Command vigilo is a local observability sidecar for AI coding agents:
// an MCP server by default, with read subcommands over the same
// on-disk event ledger.
package main

import (
	"fmt"
	"os"

	"github.com/vigilo-sh/vigilo/internal/cli"
	verrors "github.com/vigilo-sh/vigilo/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vigilo: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a returned error onto spec §7's exit-code table: 1
// generic, 4 ledger unreadable. Port-in-use (3) is raised directly by
// the dashboard subcommand via os.Exit, since it needs to happen before
// Execute returns. Cobra's own flag/arg-parsing errors (exit code 2)
// don't carry a distinguishable type across cobra's error paths, so
// they fall through to the generic code here.
func exitCode(err error) int {
	if verr, ok := verrors.As(err); ok && verr.Kind == verrors.KindLedger {
		return 4
	}
	return 1
}
