// Package reconciler merges freshly fetched upstream orders with the
// persisted record set.
//
// Each line item is keyed by (order id, product code). Rows whose key was
// seen before keep their surrogate id, claim workflow state, enrichment and
// version; financial fields are always recomputed from the upstream data.
// New keys get the next id from a Sequence. Keys absent from the fetch are
// dropped from the active set and reported in the changeset.
package reconciler

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
)

// Reconciler merges upstream orders into the existing record set.
type Reconciler interface {
	Merge(ctx context.Context, existing []*orders.Record, incoming []orders.UpstreamOrder) (*Result, error)
}

type reconciler struct {
	opts *options
}

// New creates a Reconciler.
func New(opts ...Option) (Reconciler, error) {
	defaults, err := defaultOptions()
	if err != nil {
		return nil, err
	}
	o, err := defaults.apply(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{opts: o}, nil
}

// Merge runs the merge in clear steps. It never mutates existing.
func (r *reconciler) Merge(ctx context.Context, existing []*orders.Record, incoming []orders.UpstreamOrder) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(ctx)

	// Step 1: Index existing rows by key
	existing = nonNil(existing)
	lookup, maxID := index(existing)
	if len(lookup) != len(existing) {
		logger.Warn().
			Int("rows", len(existing)).
			Int("keys", len(lookup)).
			Msg("Existing records contain duplicate keys, keeping the lowest id")
	}

	// Step 2: Pick the id sequence
	seq := r.opts.sequence
	if seq == nil {
		seq = NewCounter(max(maxID, r.opts.highWater))
	}

	// Step 3: Build one row per line item
	result := &Result{}
	rows := make([]*orders.Record, 0, len(existing))
	seenOrders := make(map[string]bool, len(incoming))
	for _, order := range incoming {
		id := order.OrderID()
		if id == "" || seenOrders[id] {
			result.Stats.SkippedOrders++
			logger.Warn().Str("order_id", id).Msg("Skipping order without id or repeated in fetch")
			continue
		}
		seenOrders[id] = true
		result.Stats.Orders++

		built := r.orderRows(ctx, order, lookup, seq, &result.Stats)
		rows = append(rows, built...)
	}

	// Step 4: Order deterministically and diff against the stored rows
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	result.Rows = rows
	result.Stats.Lines = len(rows)
	result.Changeset = r.opts.differ.Records(existing, rows)
	result.Changed = result.Changeset.KeySetChanged()

	result.LastID = max(maxID, r.opts.highWater)
	for _, row := range rows {
		result.LastID = max(result.LastID, row.ID)
	}
	result.Duration = time.Since(start)

	logger.Debug().
		Int("orders", result.Stats.Orders).
		Int("lines", result.Stats.Lines).
		Int("new", result.Stats.New).
		Int("preserved", result.Stats.Preserved).
		Bool("changed", result.Changed).
		Msg("Merged upstream orders")

	return result, nil
}

// orderRows allocates the order total across its lines and builds the rows.
func (r *reconciler) orderRows(ctx context.Context, order orders.UpstreamOrder, lookup map[orders.Key]*orders.Record, seq Sequence, stats *Stats) []*orders.Record {
	lines := order.Lines()
	if len(lines) == 0 {
		return nil
	}

	prices := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		prices[i] = l.Price
	}
	split := r.opts.allocator.Split(order.TotalPrice, prices)
	if split.Degenerate {
		stats.DegenerateSplit++
		logging.FromContext(ctx).Debug().
			Str("order_id", order.OrderID()).
			Int("lines", len(lines)).
			Msg("No positive line prices, splitting order total equally")
	}

	rows := make([]*orders.Record, len(lines))
	for i, l := range lines {
		key := order.Key(l)

		var row *orders.Record
		if prior, ok := lookup[key]; ok {
			row = prior.Clone()
			stats.Preserved++
		} else {
			row = orders.NewRecord(seq.Next(), key)
			stats.New++
		}

		row.ProductName = l.ProductName
		row.OrderDate = order.CreatedAt

		class := r.opts.classifier.Classify(order.Tags, order.TotalPrice, split.Amounts[i])
		row.Financials = orders.Financials{
			SellingPrice:      l.Price,
			OrderTotal:        order.TotalPrice,
			PaymentType:       class.PaymentType,
			PrepaidAmount:     class.PrepaidAmount,
			AllocationRatio:   split.Ratios[i],
			AllocatedTotal:    split.Amounts[i],
			CollectableAmount: class.CollectableAmount,
		}
		rows[i] = row
	}
	return rows
}

func nonNil(rows []*orders.Record) []*orders.Record {
	out := make([]*orders.Record, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, row)
		}
	}
	return out
}

// index maps existing rows by key. On duplicate keys the lowest id wins.
func index(existing []*orders.Record) (map[orders.Key]*orders.Record, int64) {
	lookup := make(map[orders.Key]*orders.Record, len(existing))
	var maxID int64
	for _, row := range existing {
		maxID = max(maxID, row.ID)
		if prior, ok := lookup[row.Key()]; ok && prior.ID < row.ID {
			continue
		}
		lookup[row.Key()] = row
	}
	return lookup, maxID
}
