package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/enhancer"
	"github.com/agentstation/ordersync/pkg/store"
)

// Result represents the complete result of a sync cycle.
type Result struct {
	CycleID   string
	StartedAt utc.Time
	Duration  time.Duration

	// Fetch and merge
	Orders           int                // Upstream orders fetched
	Lines            int                // Line items reconciled
	SkippedOrders    int                // Orders without a usable id
	DegenerateSplits int                // Orders split equally because no price was positive
	Rows             int                // Active rows after the merge
	LastID           int64              // Largest surrogate id in use
	Changed          bool               // Active key set differs from the stored one
	Changeset        *differ.Changeset  // Field level differences
	Write            *store.WriteResult // Nil when nothing was written

	// Enhancement
	Enhancement        enhancer.Stats
	EnhancementWritten int   // Rows persisted by the enhancement write
	EnhancementErr     error // Logged, never returned by Sync

	// Operation metadata
	DryRun bool
}

// Written reports whether the cycle wrote the merged rows.
func (r *Result) Written() bool {
	return r.Write.Written()
}

// HasChanges returns true if the merge found anything to write.
func (r *Result) HasChanges() bool {
	return r.Changed || r.Changeset.HasChanges()
}

// Summary returns a human-readable summary of the sync result.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d orders, %d lines", r.Orders, r.Lines)
	if r.HasChanges() {
		fmt.Fprintf(&b, "; %s", r.Changeset.String())
	} else {
		b.WriteString("; no changes detected")
	}

	var flags []string
	if r.DryRun {
		flags = append(flags, "(Dry run)")
	}
	if r.SkippedOrders > 0 {
		flags = append(flags, fmt.Sprintf("(%d orders skipped)", r.SkippedOrders))
	}
	if r.EnhancementWritten > 0 {
		flags = append(flags, fmt.Sprintf("(%d rows enhanced)", r.EnhancementWritten))
	}
	if len(flags) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(flags, " "))
	}
	return b.String()
}
