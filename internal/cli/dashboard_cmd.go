package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/config"
	"github.com/vigilo-sh/vigilo/internal/dashboard"
	"github.com/vigilo-sh/vigilo/internal/logging"
)

func newDashboardCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the embedded HTTP dashboard and block",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}

			cfg := dashboard.Config{
				Host:      host,
				Port:      port,
				LedgerDir: a.ledgerDir,
				Envelope:  a.envelope,
				Logger:    logging.NewWithComponent(logging.DefaultConfig(), "dashboard"),
			}
			if env, lerr := config.LoadEnv(); lerr == nil {
				if host == "" && env.DashboardHost != "" {
					cfg.Host = env.DashboardHost
				}
				if port == 0 && env.DashboardPort != 0 {
					cfg.Port = env.DashboardPort
				}
			}

			srv, err := dashboard.New(cfg)
			if err != nil {
				if errors.Is(err, dashboard.ErrPortUnavailable) {
					fmt.Fprintln(cmd.ErrOrStderr(), "dashboard: requested port is in use")
					os.Exit(dashboard.ExitCodePortUnavailable)
				}
				return err
			}
			srv.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "dashboard listening on http://%s\n", srv.Addr())

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			return srv.Stop(context.Background())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bind host (default 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (default 7847)")
	return cmd
}
