// Package watch implements the watch command: periodic reconciliation
// cycles plus the ops HTTP server.
package watch

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/ordersync/cmd/application"
	"github.com/agentstation/ordersync/internal/server"
)

// Flags holds the watch command flags.
type Flags struct {
	Addr        string
	SkipInitial bool
	NoMetrics   bool
}

// NewCommand creates the watch command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Run cycles periodically and serve the ops API",
		Long: `Watch runs a reconciliation cycle immediately, then one every
sync.interval, until interrupted. While running it serves the ops API:
health and readiness probes, record and claim endpoints, the last cycle
outcome, Prometheus metrics and live cycle events over WebSocket or SSE.`,
		Example: `  ordersync watch                        # Serve on server.addr
  ordersync watch --addr :9090           # Listen on all interfaces
  ordersync watch --skip-initial         # Wait for the first tick`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&flags.SkipInitial, "skip-initial", false, "do not run a cycle at startup")
	cmd.Flags().BoolVar(&flags.NoMetrics, "no-metrics", false, "do not expose /metrics")
	return cmd
}

// Execute runs until the command context is canceled.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()
	logger := app.Logger()

	cfg := app.ServerConfig()
	if flags.Addr != "" {
		if err := cfg.ParseAddr(flags.Addr); err != nil {
			return err
		}
	}
	if flags.NoMetrics {
		cfg.MetricsEnabled = false
	}

	client, err := app.Client()
	if err != nil {
		return err
	}

	// The server registers its hooks before the first cycle runs
	srv, err := server.New(client, app.Metrics(), cfg, logger)
	if err != nil {
		return err
	}

	if !flags.SkipInitial {
		if res, err := client.Sync(ctx); err != nil {
			logger.Warn().Err(err).Msg("Initial cycle failed, continuing on schedule")
		} else {
			logger.Info().Str("cycle_id", res.CycleID).Msg(res.Summary())
		}
	}

	if err := client.AutoUpdatesOn(); err != nil {
		return err
	}
	defer func() {
		if err := client.AutoUpdatesOff(); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop auto-updates")
		}
	}()

	logger.Info().
		Dur("interval", app.SyncInterval()).
		Str("addr", cfg.Addr()).
		Msg("Watching carrier orders")
	return srv.ListenAndServe(ctx)
}
