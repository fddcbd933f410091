package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/orders"
)

// Result is the outcome of one merge.
type Result struct {
	// Rows is the complete replacement record set, ordered by id.
	Rows []*orders.Record

	// Changed is true when the set of keys differs from the existing rows.
	Changed bool

	// Changeset details added, updated and removed rows.
	Changeset *differ.Changeset

	// LastID is the largest surrogate id issued or seen.
	LastID int64

	Stats    Stats
	Duration time.Duration
}

// Stats counts what the merge saw.
type Stats struct {
	Orders          int // Upstream orders processed
	Lines           int // Line records produced
	New             int // Keys seen for the first time
	Preserved       int // Keys carried over with their workflow state
	SkippedOrders   int // Orders without id or repeated in the fetch
	DegenerateSplit int // Orders split equally for lack of positive prices
}

// NeedsWrite reports whether the result differs from the stored rows in
// any way, including field updates on unchanged keys.
func (r *Result) NeedsWrite() bool {
	return r.Changed || r.Changeset.HasChanges()
}

// Removed returns the rows dropped from the active set.
func (r *Result) Removed() []*orders.Record {
	if r.Changeset == nil {
		return nil
	}
	return r.Changeset.Removed
}

// Summary returns a one line description for logs and CLI output.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d orders, %d lines (%d new, %d preserved), changed=%t",
		r.Stats.Orders, r.Stats.Lines, r.Stats.New, r.Stats.Preserved, r.Changed)
}
