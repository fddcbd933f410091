// Package store defines the persistence contracts for the reconciled record
// set. A store is read in full at the start of a cycle and replaced in full
// when the cycle decides a write is needed. Implementations live under
// internal/store.
package store

import (
	"context"

	"github.com/agentstation/utc"

	"github.com/agentstation/ordersync/pkg/orders"
)

// Snapshot is the persisted record set at one point in time.
type Snapshot struct {
	Records   []*orders.Record
	HighWater int64 // Largest surrogate id ever assigned
}

// MaxID returns the largest id among the records and the high-water mark.
func (s *Snapshot) MaxID() int64 {
	if s == nil {
		return 0
	}
	high := s.HighWater
	for _, r := range s.Records {
		if r != nil && r.ID > high {
			high = r.ID
		}
	}
	return high
}

// WriteResult reports what a Replace did.
type WriteResult struct {
	Inserted  int
	Updated   int
	Deleted   int
	Archived  int
	Unchanged int
	HighWater int64
}

// Written reports whether any row was touched.
func (w *WriteResult) Written() bool {
	return w != nil && w.Inserted+w.Updated+w.Deleted > 0
}

// Store is the full-read, replace-on-change record store.
type Store interface {
	// Load returns every active record sorted by id.
	Load(ctx context.Context) (*Snapshot, error)

	// Replace makes rows the active set. Rows whose content differs from
	// the stored row must carry the stored version or the whole write is
	// rejected with an *errors.ConflictError.
	Replace(ctx context.Context, rows []*orders.Record) (*WriteResult, error)

	// Close releases the store's resources.
	Close() error
}

// PayloadCache keeps the raw upstream response of the latest fetch.
type PayloadCache interface {
	PutPayload(ctx context.Context, body []byte) error

	// LatestPayload returns an *errors.NotFoundError when nothing is cached.
	LatestPayload(ctx context.Context) ([]byte, error)
}

// WorkflowFunc mutates the workflow state of one record.
type WorkflowFunc func(w *orders.Workflow) error

// WorkflowUpdater is the update primitive of the external claim workflow.
type WorkflowUpdater interface {
	// Get returns the active record with the given surrogate id.
	Get(ctx context.Context, id int64) (*orders.Record, error)

	// UpdateWorkflow applies fn to the record when its stored version equals
	// expectedVersion and returns the updated record.
	UpdateWorkflow(ctx context.Context, id, expectedVersion int64, fn WorkflowFunc) (*orders.Record, error)
}

// ArchivedRecord is a record that vanished from the upstream feed.
type ArchivedRecord struct {
	Record     *orders.Record `json:"record" yaml:"record"`
	ArchivedAt utc.Time       `json:"archived_at" yaml:"archived_at"`
}

// Archiver exposes the rows a store archived when they left the active set.
type Archiver interface {
	Archived(ctx context.Context, limit int) ([]ArchivedRecord, error)
}
