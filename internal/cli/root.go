package cli

import (
	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/pkg/version"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "vigilo",
	Short: "A local-only observability sidecar for AI coding agents",
	Long: `vigilo sits between a coding agent and the tools it calls, recording
every tool invocation to an append-only, optionally encrypted ledger on
disk, entirely on the local machine.

Running vigilo with no subcommand starts the MCP server itself, reading
JSON-RPC requests from stdin and writing responses to stdout — this is
the mode an agent's MCP client config should point at. The remaining
subcommands are read tools over the same ledger: summaries, tails,
session views, a live dashboard, and the terminal watcher.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored/styled output")

	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newTailCmd())
	rootCmd.AddCommand(newErrorsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newGenerateKeyCmd())
	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newHookCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("vigilo version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
