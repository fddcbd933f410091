package records

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/cmd/application"
	"github.com/agentstation/ordersync/internal/cmd/output"
	"github.com/agentstation/ordersync/pkg/orders"
)

// workflowClient is the part of the client the single-record commands use.
type workflowClient = ordersync.Records

// run resolves the output format, applies fn to the client and prints the
// resulting record.
func run(cmd *cobra.Command, app application.Application, fn func(workflowClient) (*orders.Record, error)) error {
	format, err := output.Resolve(app.OutputFormat())
	if err != nil {
		return err
	}
	client, err := app.Client()
	if err != nil {
		return err
	}
	record, err := fn(client)
	if err != nil {
		return err
	}
	app.Logger().Debug().
		Int64("id", record.ID).
		Str("status", record.Status.String()).
		Str("command", cmd.Name()).
		Msg("Record command finished")
	return output.Records(cmd.OutOrStdout(), format, []output.RecordView{output.NewRecordView(record)})
}
