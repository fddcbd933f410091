package enhancer

import (
	"context"
	"strings"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/orders"
)

// ProductMatcher resolves a product name to an image reference.
type ProductMatcher interface {
	Match(productName string) (ref string, ok bool)
}

// ProductImageEnhancer fills product images by matching product names
// against a catalog.
type ProductImageEnhancer struct {
	matcher     ProductMatcher
	placeholder string
	retry       bool
}

var _ Enhancer = (*ProductImageEnhancer)(nil)

// ImageOption configures a ProductImageEnhancer.
type ImageOption func(*ProductImageEnhancer)

// WithImagePlaceholder sets the reference stored when nothing matches.
func WithImagePlaceholder(ref string) ImageOption {
	return func(e *ProductImageEnhancer) {
		if ref != "" {
			e.placeholder = ref
		}
	}
}

// WithImageRetry re-resolves rows that currently hold the placeholder.
func WithImageRetry() ImageOption {
	return func(e *ProductImageEnhancer) {
		e.retry = true
	}
}

// NewProductImageEnhancer creates a ProductImageEnhancer.
func NewProductImageEnhancer(m ProductMatcher, opts ...ImageOption) *ProductImageEnhancer {
	e := &ProductImageEnhancer{
		matcher:     m,
		placeholder: constants.ProductImagePlaceholder,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Enhancer.
func (e *ProductImageEnhancer) Name() string { return "product_image" }

// Field implements Enhancer.
func (e *ProductImageEnhancer) Field() string { return FieldProductImageRef }

// Priority implements Enhancer.
func (e *ProductImageEnhancer) Priority() int { return 50 }

// Prepare implements Enhancer.
func (e *ProductImageEnhancer) Prepare(context.Context) error { return nil }

// CanEnhance implements Enhancer.
func (e *ProductImageEnhancer) CanEnhance(r *orders.Record) bool {
	ref := strings.TrimSpace(r.ProductImageRef)
	return ref == "" || (e.retry && ref == e.placeholder)
}

// Enhance implements Enhancer. A missing matcher or a panicking one
// degrades to the placeholder.
func (e *ProductImageEnhancer) Enhance(_ context.Context, r *orders.Record) (matched bool, err error) {
	defer func() {
		if recover() != nil {
			r.ProductImageRef = e.placeholder
			matched, err = false, nil
		}
	}()

	if e.matcher != nil {
		if ref, ok := e.matcher.Match(r.ProductName); ok && ref != "" {
			r.ProductImageRef = ref
			return true, nil
		}
	}
	r.ProductImageRef = e.placeholder
	return false, nil
}
