// Package differ compares two record sets and reports what changed.
package differ

import (
	"sort"
	"strconv"

	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/utc"
)

// Differ handles change detection between record sets.
type Differ interface {
	// Records compares the persisted rows with the rows about to replace them.
	Records(existing, updated []*orders.Record) *Changeset
}

type differ struct {
	ignoreFields map[string]bool
}

// Option configures a Differ.
type Option func(*differ)

// WithIgnoredFields excludes field paths (e.g. "customer_name") from
// comparison.
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// New creates a Differ.
func New(opts ...Option) Differ {
	d := &differ{ignoreFields: make(map[string]bool)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Records compares two record sets by key.
func (diff *differ) Records(existing, updated []*orders.Record) *Changeset {
	cs := &Changeset{
		Added:   []*orders.Record{},
		Updated: []RecordUpdate{},
		Removed: []*orders.Record{},
	}

	existingMap := make(map[orders.Key]*orders.Record, len(existing))
	for _, r := range existing {
		existingMap[r.Key()] = r
	}
	updatedMap := make(map[orders.Key]*orders.Record, len(updated))
	for _, r := range updated {
		updatedMap[r.Key()] = r
	}

	for _, r := range updated {
		old, ok := existingMap[r.Key()]
		if !ok {
			cs.Added = append(cs.Added, r)
			continue
		}
		if changes := diff.fields(old, r); len(changes) > 0 {
			cs.Updated = append(cs.Updated, RecordUpdate{
				Key:      r.Key(),
				ID:       r.ID,
				Existing: old,
				New:      r,
				Changes:  changes,
			})
		}
	}

	for _, r := range existing {
		if _, ok := updatedMap[r.Key()]; !ok {
			cs.Removed = append(cs.Removed, r)
		}
	}

	sort.Slice(cs.Added, func(i, j int) bool { return cs.Added[i].ID < cs.Added[j].ID })
	sort.Slice(cs.Updated, func(i, j int) bool { return cs.Updated[i].ID < cs.Updated[j].ID })
	sort.Slice(cs.Removed, func(i, j int) bool { return cs.Removed[i].ID < cs.Removed[j].ID })

	cs.Summary = ChangesetSummary{
		Added:        len(cs.Added),
		Updated:      len(cs.Updated),
		Removed:      len(cs.Removed),
		TotalChanges: len(cs.Added) + len(cs.Updated) + len(cs.Removed),
	}
	return cs
}

func (diff *differ) fields(old, updated *orders.Record) []FieldChange {
	a, b := snapshot(old), snapshot(updated)
	var changes []FieldChange
	for i := range a {
		if diff.ignoreFields[a[i].path] || a[i].value == b[i].value {
			continue
		}
		changes = append(changes, FieldChange{
			Path:     a[i].path,
			OldValue: a[i].value,
			NewValue: b[i].value,
		})
	}
	return changes
}

type field struct {
	path  string
	value string
}

// snapshot renders every comparable field of r. The surrogate id and the
// version are bookkeeping and not part of the content.
func snapshot(r *orders.Record) []field {
	return []field{
		{"product_name", r.ProductName},
		{"order_date", r.OrderDate},
		{"selling_price", r.SellingPrice.StringFixed(2)},
		{"order_total", r.OrderTotal.StringFixed(2)},
		{"payment_type", string(r.PaymentType)},
		{"prepaid_amount", r.PrepaidAmount.StringFixed(2)},
		{"allocation_ratio", strconv.FormatInt(r.AllocationRatio, 10)},
		{"allocated_total", r.AllocatedTotal.StringFixed(2)},
		{"collectable_amount", r.CollectableAmount.StringFixed(2)},
		{"status", string(r.Status)},
		{"claimed_by", r.ClaimedBy},
		{"claimed_at", stamp(r.ClaimedAt)},
		{"last_claimed_by", r.LastClaimedBy},
		{"last_claimed_at", stamp(r.LastClaimedAt)},
		{"clone_status", r.CloneStatus},
		{"cloned_order_id", r.ClonedOrderID},
		{"is_cloned_row", strconv.FormatBool(r.IsClonedRow)},
		{"label_downloaded", strconv.FormatBool(r.LabelDownloaded)},
		{"handover_at", stamp(r.HandoverAt)},
		{"customer_name", r.CustomerName},
		{"product_image_ref", r.ProductImageRef},
	}
}

func stamp(t *utc.Time) string {
	if t == nil {
		return ""
	}
	return t.Time.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
