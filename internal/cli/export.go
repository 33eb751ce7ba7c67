package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	f := &filterFlags{}
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered event stream as JSON-lines",
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

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}

			enc := json.NewEncoder(w)
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f.addFlags(cmd)
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}
