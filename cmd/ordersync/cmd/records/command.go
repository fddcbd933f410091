// Package records implements the records command: listing stored rows and
// driving the claim workflow.
package records

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/ordersync/cmd/application"
	"github.com/agentstation/ordersync/internal/cmd/output"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
)

// NewCommand creates the records command and its subcommands.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"rec"},
		GroupID: "workflow",
		Short:   "List records and drive the claim workflow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newShowCommand(app))
	cmd.AddCommand(newClaimCommand(app))
	cmd.AddCommand(newWorkflowCommand(app, "release", "Return a claimed record to unclaimed", release))
	cmd.AddCommand(newWorkflowCommand(app, "handover", "Mark a claimed record ready for handover", handover))
	cmd.AddCommand(newArchiveCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active records",
		Example: `  ordersync records list
  ordersync records list --status unclaimed
  ordersync records list --status claimed,ready_for_handover -o wide`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			format, err := output.Resolve(app.OutputFormat())
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			rows, err := client.List(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			return output.Records(cmd.OutOrStdout(), format, output.RecordViews(rows))
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only records in these states")
	return cmd
}

func newShowCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, app, func(c workflowClient) (*orders.Record, error) {
				return c.Get(cmd.Context(), id)
			})
		},
	}
}

func newClaimCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "claim <id> <vendor>",
		Short:   "Claim an unclaimed record for a vendor",
		Example: `  ordersync records claim 42 acme-logistics`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, app, func(c workflowClient) (*orders.Record, error) {
				return c.Claim(cmd.Context(), id, args[1])
			})
		},
	}
}

type transition func(cmd *cobra.Command, c workflowClient, id int64) (*orders.Record, error)

func release(cmd *cobra.Command, c workflowClient, id int64) (*orders.Record, error) {
	return c.Release(cmd.Context(), id)
}

func handover(cmd *cobra.Command, c workflowClient, id int64) (*orders.Record, error) {
	return c.Handover(cmd.Context(), id)
}

func newWorkflowCommand(app application.Application, use, short string, fn transition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, app, func(c workflowClient) (*orders.Record, error) {
				return fn(cmd, c, id)
			})
		},
	}
}

func newArchiveCommand(app application.Application) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List archived records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || limit > constants.ArchiveRowsLimit {
				return errors.NewValidationError("limit", limit, "must be between 1 and "+strconv.Itoa(constants.ArchiveRowsLimit))
			}
			format, err := output.Resolve(app.OutputFormat())
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			rows, err := client.Archived(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return output.Records(cmd.OutOrStdout(), format, output.ArchivedViews(rows))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

// parseStatuses accepts repeated and comma separated values.
func parseStatuses(raw []string) ([]orders.Status, error) {
	var out []orders.Status
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			st, err := orders.ParseStatus(s)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("id", s, "must be a positive integer")
	}
	return id, nil
}
