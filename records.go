package ordersync

import (
	"context"
	"strconv"

	"github.com/agentstation/utc"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

// Compile-time interface check to ensure proper implementation.
var _ Records = (*client)(nil)

// Records gives consumers read access to the active rows and the claim
// workflow update primitives. Every mutation is checked against the row
// version and fails with an *errors.ConflictError when the row moved.
type Records interface {
	// List returns the active rows, optionally restricted to some statuses.
	List(ctx context.Context, statuses ...orders.Status) ([]*orders.Record, error)

	// Get returns one active row by surrogate id.
	Get(ctx context.Context, id int64) (*orders.Record, error)

	// Claim assigns an unclaimed row to vendor.
	Claim(ctx context.Context, id int64, vendor string) (*orders.Record, error)

	// Release returns a claimed row to the pool.
	Release(ctx context.Context, id int64) (*orders.Record, error)

	// Handover marks a claimed row ready for the carrier.
	Handover(ctx context.Context, id int64) (*orders.Record, error)

	// Archived lists rows that left the active set, newest first.
	Archived(ctx context.Context, limit int) ([]store.ArchivedRecord, error)
}

// List returns the active rows sorted by id.
func (c *client) List(ctx context.Context, statuses ...orders.Status) ([]*orders.Record, error) {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return snap.Records, nil
	}

	want := make(map[orders.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]*orders.Record, 0, len(snap.Records))
	for _, r := range snap.Records {
		if want[r.Status] {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns one active row. Stores without a direct lookup are scanned.
func (c *client) Get(ctx context.Context, id int64) (*orders.Record, error) {
	if wu, ok := c.store.(store.WorkflowUpdater); ok {
		return wu.Get(ctx, id)
	}
	snap, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range snap.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NewNotFoundError("record", strconv.FormatInt(id, 10))
}

// Claim assigns an unclaimed row to vendor.
func (c *client) Claim(ctx context.Context, id int64, vendor string) (*orders.Record, error) {
	return c.updateWorkflow(ctx, id, "claim", func(w *orders.Workflow) error {
		return w.Claim(vendor, utc.Now())
	})
}

// Release returns a claimed row to the pool.
func (c *client) Release(ctx context.Context, id int64) (*orders.Record, error) {
	return c.updateWorkflow(ctx, id, "release", func(w *orders.Workflow) error {
		return w.Release()
	})
}

// Handover marks a claimed row ready for the carrier.
func (c *client) Handover(ctx context.Context, id int64) (*orders.Record, error) {
	return c.updateWorkflow(ctx, id, "handover", func(w *orders.Workflow) error {
		return w.Handover(utc.Now())
	})
}

// Archived lists rows that left the active set.
func (c *client) Archived(ctx context.Context, limit int) ([]store.ArchivedRecord, error) {
	a, ok := c.store.(store.Archiver)
	if !ok {
		return nil, errors.NewConfigError("store", "archive is not supported by this backend", nil)
	}
	return a.Archived(ctx, limit)
}

// updateWorkflow reads the row and applies fn at the version it read.
func (c *client) updateWorkflow(ctx context.Context, id int64, op string, fn store.WorkflowFunc) (*orders.Record, error) {
	wu, ok := c.store.(store.WorkflowUpdater)
	if !ok {
		return nil, errors.NewConfigError("store", "workflow updates are not supported by this backend", nil)
	}

	current, err := wu.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := wu.UpdateWorkflow(ctx, id, current.Version, fn)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Str("operation", op).
		Int64("record_id", id).
		Str("status", updated.Status.String()).
		Int64("version", updated.Version).
		Msg("Workflow updated")
	return updated, nil
}
