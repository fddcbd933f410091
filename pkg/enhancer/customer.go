package enhancer

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/orders"
)

// PayloadSource returns the most recently cached raw upstream response.
type PayloadSource interface {
	LatestPayload(ctx context.Context) ([]byte, error)
}

// CustomerNameEnhancer fills customer names from the cached upstream
// payload. A nil source stores the placeholder for every row.
type CustomerNameEnhancer struct {
	source      PayloadSource
	placeholder string
	retry       bool
	titleCase   bool

	mu    sync.RWMutex
	names map[string]string
}

var _ Enhancer = (*CustomerNameEnhancer)(nil)

// CustomerOption configures a CustomerNameEnhancer.
type CustomerOption func(*CustomerNameEnhancer)

// WithCustomerPlaceholder sets the value stored when no name is found.
func WithCustomerPlaceholder(s string) CustomerOption {
	return func(e *CustomerNameEnhancer) {
		e.placeholder = s
	}
}

// WithCustomerRetry re-resolves rows that currently hold the placeholder.
func WithCustomerRetry() CustomerOption {
	return func(e *CustomerNameEnhancer) {
		e.retry = true
	}
}

// WithTitleCase title-cases resolved names ("ada LOVELACE" -> "Ada Lovelace").
func WithTitleCase() CustomerOption {
	return func(e *CustomerNameEnhancer) {
		e.titleCase = true
	}
}

// NewCustomerNameEnhancer creates a CustomerNameEnhancer.
func NewCustomerNameEnhancer(source PayloadSource, opts ...CustomerOption) *CustomerNameEnhancer {
	e := &CustomerNameEnhancer{
		source:      source,
		placeholder: constants.CustomerNamePlaceholder,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Enhancer.
func (e *CustomerNameEnhancer) Name() string { return "customer_name" }

// Field implements Enhancer.
func (e *CustomerNameEnhancer) Field() string { return FieldCustomerName }

// Priority implements Enhancer.
func (e *CustomerNameEnhancer) Priority() int { return 100 }

// Prepare decodes the cached payload into an order id to name map. On
// failure the map is left empty so every pending row gets the placeholder.
func (e *CustomerNameEnhancer) Prepare(ctx context.Context) error {
	e.mu.Lock()
	e.names = nil
	e.mu.Unlock()

	// Without a source every row gets the placeholder.
	if e.source == nil {
		return nil
	}
	body, err := e.source.LatestPayload(ctx)
	if err != nil {
		return err
	}
	list, err := orders.DecodeEnvelope(body)
	if err != nil {
		return err
	}

	var title cases.Caser
	if e.titleCase {
		title = cases.Title(language.Und)
	}

	names := make(map[string]string, len(list))
	for _, o := range list {
		name := o.CustomerName()
		if name == "" {
			continue
		}
		if e.titleCase {
			name = title.String(name)
		}
		names[o.OrderID()] = name
	}

	e.mu.Lock()
	e.names = names
	e.mu.Unlock()
	return nil
}

// CanEnhance implements Enhancer.
func (e *CustomerNameEnhancer) CanEnhance(r *orders.Record) bool {
	name := strings.TrimSpace(r.CustomerName)
	return name == "" || (e.retry && name == e.placeholder)
}

// Enhance implements Enhancer.
func (e *CustomerNameEnhancer) Enhance(_ context.Context, r *orders.Record) (bool, error) {
	e.mu.RLock()
	name, ok := e.names[r.OrderID]
	e.mu.RUnlock()

	if !ok {
		r.CustomerName = e.placeholder
		return false, nil
	}
	r.CustomerName = name
	return true, nil
}
