package differ

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentstation/ordersync/pkg/orders"
)

// FieldChange represents a change to a single field of a record.
type FieldChange struct {
	Path     string // Field name (e.g., "allocated_total")
	OldValue string
	NewValue string
}

// RecordUpdate is a record present on both sides whose content changed.
type RecordUpdate struct {
	Key      orders.Key
	ID       int64
	Existing *orders.Record
	New      *orders.Record
	Changes  []FieldChange
}

// Changed reports whether the update touched path.
func (u RecordUpdate) Changed(path string) bool {
	for _, c := range u.Changes {
		if c.Path == path {
			return true
		}
	}
	return false
}

// Changeset is the difference between two record sets.
type Changeset struct {
	Added   []*orders.Record
	Updated []RecordUpdate
	Removed []*orders.Record
	Summary ChangesetSummary
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	Added        int `json:"added"`
	Updated      int `json:"updated"`
	Removed      int `json:"removed"`
	TotalChanges int `json:"total_changes"`
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c != nil && c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return !c.HasChanges()
}

// KeySetChanged reports whether keys were added or removed.
func (c *Changeset) KeySetChanged() bool {
	return c != nil && (len(c.Added) > 0 || len(c.Removed) > 0)
}

// String returns a one line summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}
	var parts []string
	if n := len(c.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(c.Updated); n > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", n))
	}
	if n := len(c.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	return fmt.Sprintf("Records: %s (Total: %d changes)", strings.Join(parts, ", "), c.Summary.TotalChanges)
}

// Print writes a detailed view of the changeset to w.
func (c *Changeset) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w, c.String())
	if c.IsEmpty() {
		return
	}
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 80))

	if len(c.Added) > 0 {
		_, _ = fmt.Fprintf(w, "\n➕ Added (%d):\n", len(c.Added))
		for _, r := range c.Added {
			_, _ = fmt.Fprintf(w, "  • #%d %s %s\n", r.ID, r.Key(), r.ProductName)
		}
	}
	if len(c.Updated) > 0 {
		_, _ = fmt.Fprintf(w, "\n🔄 Updated (%d):\n", len(c.Updated))
		for _, u := range c.Updated {
			_, _ = fmt.Fprintf(w, "  • #%d %s:\n", u.ID, u.Key)
			for _, change := range u.Changes {
				_, _ = fmt.Fprintf(w, "    - %s: %s → %s\n", change.Path, change.OldValue, change.NewValue)
			}
		}
	}
	if len(c.Removed) > 0 {
		_, _ = fmt.Fprintf(w, "\n⚠️  Removed (%d):\n", len(c.Removed))
		for _, r := range c.Removed {
			_, _ = fmt.Fprintf(w, "  • #%d %s (%s)\n", r.ID, r.Key(), r.Status)
		}
	}
}
