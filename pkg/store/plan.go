package store

import (
	"sort"

	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
)

// Plan is the set of row operations that turns the stored rows into the
// incoming rows. Insert and Update rows are copies carrying the version
// they will be stored with.
type Plan struct {
	Insert    []*orders.Record
	Update    []*orders.Record
	Delete    []*orders.Record // As stored
	Unchanged int
	HighWater int64
}

// Empty reports whether the plan touches no rows.
func (p *Plan) Empty() bool {
	return len(p.Insert)+len(p.Update)+len(p.Delete) == 0
}

// Result converts the plan into a WriteResult.
func (p *Plan) Result(archived int) *WriteResult {
	return &WriteResult{
		Inserted:  len(p.Insert),
		Updated:   len(p.Update),
		Deleted:   len(p.Delete),
		Archived:  archived,
		Unchanged: p.Unchanged,
		HighWater: p.HighWater,
	}
}

// NewPlan compares the stored rows with the incoming ones.
//
// Rows are matched by key. A matched row must keep its surrogate id, and a
// matched row whose content changed must carry the stored version. New rows
// start at version 1 and must take an id above both highWater and every
// stored id.
func NewPlan(current, incoming []*orders.Record, highWater int64) (*Plan, error) {
	incoming = compact(incoming)
	if err := validate(incoming); err != nil {
		return nil, err
	}

	current = compact(current)
	for _, r := range current {
		if r.ID > highWater {
			highWater = r.ID
		}
	}

	cs := differ.New().Records(current, incoming)
	plan := &Plan{HighWater: highWater}

	updated := make(map[orders.Key]bool, len(cs.Updated))
	for _, u := range cs.Updated {
		if u.Existing.ID != u.New.ID {
			return nil, &errors.ValidationError{
				Field:   "id",
				Value:   u.New.ID,
				Message: "surrogate id of " + u.Key.String() + " cannot change",
			}
		}
		if u.Existing.Version != u.New.Version {
			return nil, errors.NewConflictError(u.ID, u.New.Version, u.Existing.Version)
		}
		row := u.New.Clone()
		row.Version = u.Existing.Version + 1
		plan.Update = append(plan.Update, row)
		updated[u.Key] = true
	}

	stored := make(map[orders.Key]*orders.Record, len(current))
	for _, r := range current {
		stored[r.Key()] = r
	}
	for _, r := range incoming {
		if old, ok := stored[r.Key()]; ok && !updated[r.Key()] {
			if old.ID != r.ID {
				return nil, &errors.ValidationError{
					Field:   "id",
					Value:   r.ID,
					Message: "surrogate id of " + r.Key().String() + " cannot change",
				}
			}
			plan.Unchanged++
		}
	}

	plan.Delete = append(plan.Delete, cs.Removed...)

	for _, r := range cs.Added {
		if r.ID <= highWater {
			return nil, &errors.ValidationError{
				Field:   "id",
				Value:   r.ID,
				Message: "surrogate id was already assigned",
			}
		}
		row := r.Clone()
		row.Version = 1
		plan.Insert = append(plan.Insert, row)
	}

	for _, r := range incoming {
		if r.ID > plan.HighWater {
			plan.HighWater = r.ID
		}
	}
	return plan, nil
}

// ApplyWorkflow checks the version of r, applies fn to a copy and returns
// the copy with its version bumped. r is never modified.
func ApplyWorkflow(r *orders.Record, expectedVersion int64, fn WorkflowFunc) (*orders.Record, error) {
	if r.Version != expectedVersion {
		return nil, errors.NewConflictError(r.ID, expectedVersion, r.Version)
	}
	next := r.Clone()
	if err := fn(&next.Workflow); err != nil {
		return nil, err
	}
	next.Version++
	return next, nil
}

// Sorted returns rows ordered by id.
func Sorted(rows []*orders.Record) []*orders.Record {
	out := compact(rows)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func compact(rows []*orders.Record) []*orders.Record {
	out := make([]*orders.Record, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func validate(rows []*orders.Record) error {
	ids := make(map[int64]bool, len(rows))
	keys := make(map[orders.Key]bool, len(rows))
	for _, r := range rows {
		if r.ID <= 0 {
			return &errors.ValidationError{Field: "id", Value: r.ID, Message: "must be positive"}
		}
		if r.OrderID == "" || r.ProductCode == "" {
			return &errors.ValidationError{Field: "key", Value: r.Key().String(), Message: "order id and product code are required"}
		}
		if ids[r.ID] {
			return &errors.ValidationError{Field: "id", Value: r.ID, Message: "duplicate surrogate id"}
		}
		if keys[r.Key()] {
			return &errors.ValidationError{Field: "key", Value: r.Key().String(), Message: "duplicate key"}
		}
		ids[r.ID] = true
		keys[r.Key()] = true
	}
	return nil
}
