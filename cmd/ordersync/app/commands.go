package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/ordersync/cmd/ordersync/cmd/reconcile"
	"github.com/agentstation/ordersync/cmd/ordersync/cmd/records"
	"github.com/agentstation/ordersync/cmd/ordersync/cmd/version"
	"github.com/agentstation/ordersync/cmd/ordersync/cmd/watch"
)

// registerCommands wires every subcommand to the app.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(reconcile.NewCommand(a))
	rootCmd.AddCommand(watch.NewCommand(a))
	rootCmd.AddCommand(records.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))
}
