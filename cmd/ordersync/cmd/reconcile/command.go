// Package reconcile implements the sync command, which runs one
// reconciliation cycle and prints its result.
package reconcile

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/ordersync/cmd/application"
	"github.com/agentstation/ordersync/internal/cmd/output"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// Flags holds the sync command flags.
type Flags struct {
	DryRun          bool
	Force           bool
	SkipEnhancement bool
}

// NewCommand creates the sync command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Run one reconciliation cycle",
		Long: `Sync fetches the carrier's open orders, splits every order's financials
across its lines, and reconciles the rows with the record store.

Rows whose financials changed are rewritten, new lines get fresh ids,
and lines the carrier no longer reports are archived. Workflow state
is never touched by a cycle.`,
		Example: `  ordersync sync                      # Run a cycle
  ordersync sync --dry-run            # Show the changeset without writing
  ordersync sync --force              # Rewrite every row
  ordersync sync -o json              # Machine readable result`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Execute(cmd, app, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "compute the changeset without writing")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "rewrite every row even when nothing changed")
	cmd.Flags().BoolVar(&flags.SkipEnhancement, "skip-enhancement", false, "skip customer name and product image enhancement")
	return cmd
}

// Execute runs the cycle and prints the result.
func Execute(cmd *cobra.Command, app application.Application, flags *Flags) error {
	format, err := output.Resolve(app.OutputFormat())
	if err != nil {
		return err
	}

	client, err := app.Client()
	if err != nil {
		return err
	}

	res, err := client.Sync(cmd.Context(),
		pkgsync.WithDryRun(flags.DryRun),
		pkgsync.WithForce(flags.Force),
		pkgsync.WithSkipEnhancement(flags.SkipEnhancement),
	)
	if err != nil {
		return err
	}

	app.Logger().Debug().
		Str("cycle_id", res.CycleID).
		Dur("duration", res.Duration).
		Bool("written", res.Written()).
		Msg("Cycle finished")
	return output.Print(cmd.OutOrStdout(), format, res)
}
