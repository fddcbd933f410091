// Package enhancer backfills display fields of records after the
// authoritative write. Enhancement is best effort: a failing enhancer is
// logged and its rows get the placeholder, as does a lookup that finds
// nothing. Rows whose field did not change are not reported.
package enhancer

import (
	"context"
	"sort"

	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
)

// Field names filled by the built-in enhancers.
const (
	FieldCustomerName    = "customer_name"
	FieldProductImageRef = "product_image_ref"
)

// Enhancer fills one field of a record.
type Enhancer interface {
	// Name returns the enhancer name
	Name() string

	// Field returns the record field this enhancer fills
	Field() string

	// Priority returns the priority of this enhancer (higher = applied first)
	Priority() int

	// Prepare is called once per run before any Enhance call. When it
	// fails Enhance still runs and must store the placeholder.
	Prepare(ctx context.Context) error

	// CanEnhance checks if the record still needs this enhancer
	CanEnhance(r *orders.Record) bool

	// Enhance fills the field in place. It reports false when nothing
	// matched and a placeholder was stored.
	Enhance(ctx context.Context, r *orders.Record) (bool, error)
}

// Stats counts pipeline outcomes per field.
type Stats struct {
	Enhanced map[string]int // Fields filled from a real match
	Misses   map[string]int // Fields filled with a placeholder
	Failed   map[string]int // Enhancers that could not run or errored
}

func newStats() Stats {
	return Stats{
		Enhanced: map[string]int{},
		Misses:   map[string]int{},
		Failed:   map[string]int{},
	}
}

// Total returns the number of fields written.
func (s Stats) Total() int {
	n := 0
	for _, v := range s.Enhanced {
		n += v
	}
	for _, v := range s.Misses {
		n += v
	}
	return n
}

// Pipeline manages a chain of enhancers
type Pipeline struct {
	enhancers []Enhancer
}

// NewPipeline creates a pipeline ordered by priority, highest first.
func NewPipeline(enhancers ...Enhancer) *Pipeline {
	sorted := make([]Enhancer, len(enhancers))
	copy(sorted, enhancers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Pipeline{enhancers: sorted}
}

// Enhancers returns the enhancers in run order.
func (p *Pipeline) Enhancers() []Enhancer {
	return p.enhancers
}

// Run enhances rows in place and returns the rows it modified, in input
// order, plus per-field statistics. It never fails.
func (p *Pipeline) Run(ctx context.Context, rows []*orders.Record) ([]*orders.Record, Stats) {
	logger := logging.FromContext(ctx)
	stats := newStats()
	touched := make([]bool, len(rows))

	for _, e := range p.enhancers {
		pending := make([]int, 0)
		for i, r := range rows {
			if r != nil && e.CanEnhance(r) {
				pending = append(pending, i)
			}
		}
		if len(pending) == 0 {
			continue
		}

		if err := e.Prepare(ctx); err != nil {
			stats.Failed[e.Field()]++
			logger.Warn().
				Err(err).
				Str("enhancer", e.Name()).
				Int("pending", len(pending)).
				Msg("Enhancer unavailable, storing placeholders")
		}

		for _, i := range pending {
			before, known := fieldValue(rows[i], e.Field())
			matched, err := e.Enhance(ctx, rows[i])
			if err != nil {
				stats.Failed[e.Field()]++
				logger.Warn().
					Err(err).
					Str("enhancer", e.Name()).
					Int64("record_id", rows[i].ID).
					Msg("Enhancer failed for record")
				continue
			}
			if after, _ := fieldValue(rows[i], e.Field()); known && after == before {
				continue
			}
			touched[i] = true
			if matched {
				stats.Enhanced[e.Field()]++
			} else {
				stats.Misses[e.Field()]++
			}
		}
	}

	changed := make([]*orders.Record, 0)
	for i, ok := range touched {
		if ok {
			changed = append(changed, rows[i])
		}
	}

	if len(changed) > 0 {
		logger.Debug().
			Int("records", len(changed)).
			Interface("misses", stats.Misses).
			Msg("Enhanced records")
	}
	return changed, stats
}

// fieldValue returns the current value of a built-in field. Unknown fields
// report false and always count as written.
func fieldValue(r *orders.Record, field string) (string, bool) {
	switch field {
	case FieldCustomerName:
		return r.CustomerName, true
	case FieldProductImageRef:
		return r.ProductImageRef, true
	}
	return "", false
}
