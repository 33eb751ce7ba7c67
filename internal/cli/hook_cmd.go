package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/catalog"
	"github.com/vigilo-sh/vigilo/internal/config"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	"github.com/vigilo-sh/vigilo/internal/hookingest"
	"github.com/vigilo-sh/vigilo/internal/ledger"
	"github.com/vigilo-sh/vigilo/internal/project"
)

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Ingest one JSON record from stdin describing a built-in tool call",
		Long:  "Invoked by the host agent's own post-tool hook, outside the MCP transport: reads exactly one JSON payload from stdin and appends it to the event ledger, adopting the running MCP server's session if one is live.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			file, err := config.LoadFile(dir)
			if err != nil {
				return err
			}
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			ledgerDir := config.LedgerDir(dir, file, env)

			writer, err := ledger.Open(ledgerDir)
			if err != nil {
				return err
			}
			defer writer.Close()

			envelope, err := crypto.AcquireKey(dir)
			if err != nil {
				return err
			}
			defer envelope.Close()

			exe, err := os.Executable()
			binaryName := "vigilo"
			if err == nil {
				binaryName = filepath.Base(exe)
			}

			ig := &hookingest.Ingester{
				ConfigDir:  dir,
				BinaryName: binaryName,
				Writer:     writer,
				Prober:     project.NewProber(),
				Envelope:   envelope,
				Catalog:    catalog.New(),
			}

			dropped, err := ig.Ingest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if dropped {
				fmt.Fprintln(cmd.OutOrStdout(), "dropped: tool name is already served by the sidecar's own catalog")
			}
			return nil
		},
	}
	return cmd
}
