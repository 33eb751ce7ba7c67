package cli

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/config"
	"github.com/vigilo-sh/vigilo/internal/crypto"
	verrors "github.com/vigilo-sh/vigilo/internal/errors"
)

func newGenerateKeyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate and persist a fresh encryption key",
		Long:  "Generates a new AES-256 key for the event ledger's envelope encryption and writes it to the config directory's encryption.key file, mode 0600. Refuses to overwrite an existing key without --force.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, crypto.KeyFileName)

			if !force {
				if _, err := os.Stat(path); err == nil {
					return verrors.New(verrors.KindConfig, "a key already exists at "+path+"; pass --force to overwrite")
				}
			}

			key := make([]byte, crypto.KeySize)
			if _, err := rand.Read(key); err != nil {
				return verrors.Wrap(verrors.KindCrypto, "generating key", err)
			}
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return verrors.Wrap(verrors.KindCrypto, "creating config dir", err)
			}
			encoded := base64.StdEncoding.EncodeToString(key)
			if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
				return verrors.Wrap(verrors.KindCrypto, "writing key file", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote new encryption key to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}
