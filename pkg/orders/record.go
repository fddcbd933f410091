// Package orders defines the order line record persisted by ordersync and
// the upstream order shapes it is derived from.
package orders

import (
	"fmt"

	"github.com/agentstation/utc"
	"github.com/shopspring/decimal"
)

// PaymentType is how an order is paid for.
type PaymentType string

// String returns the string representation of a PaymentType.
func (p PaymentType) String() string {
	return string(p)
}

// Payment types.
const (
	PaymentPrepaid PaymentType = "prepaid" // Paid at order time
	PaymentCollect PaymentType = "collect" // Collected on delivery
)

// Key identifies a record across resyncs.
type Key struct {
	OrderID     string `json:"order_id" yaml:"order_id"`
	ProductCode string `json:"product_code" yaml:"product_code"`
}

// String returns "order/product".
func (k Key) String() string {
	return k.OrderID + "/" + k.ProductCode
}

// Financials are recomputed from upstream data on every resync.
type Financials struct {
	SellingPrice      decimal.Decimal `json:"selling_price"`
	OrderTotal        decimal.Decimal `json:"order_total"`
	PaymentType       PaymentType     `json:"payment_type"`
	PrepaidAmount     decimal.Decimal `json:"prepaid_amount"`
	AllocationRatio   int64           `json:"allocation_ratio"`
	AllocatedTotal    decimal.Decimal `json:"allocated_total"`
	CollectableAmount decimal.Decimal `json:"collectable_amount"`
}

// Equal reports whether two sets of financials are identical to the cent.
func (f Financials) Equal(o Financials) bool {
	return f.SellingPrice.Equal(o.SellingPrice) &&
		f.OrderTotal.Equal(o.OrderTotal) &&
		f.PaymentType == o.PaymentType &&
		f.PrepaidAmount.Equal(o.PrepaidAmount) &&
		f.AllocationRatio == o.AllocationRatio &&
		f.AllocatedTotal.Equal(o.AllocatedTotal) &&
		f.CollectableAmount.Equal(o.CollectableAmount)
}

// Record is one product line within an open order.
type Record struct {
	// Durable identity
	ID int64 `json:"id"` // Surrogate id, assigned once per key

	// Upstream-sourced, overwritten on every resync
	OrderID     string `json:"order_id"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	OrderDate   string `json:"order_date"`

	Financials

	Workflow

	// Enrichment, filled best-effort after the authoritative write
	CustomerName    string `json:"customer_name,omitempty"`
	ProductImageRef string `json:"product_image_ref,omitempty"`

	// Version increments with every persisted change to the row
	Version int64 `json:"version"`
}

// Key returns the reconciliation key of r.
func (r *Record) Key() Key {
	return Key{OrderID: r.OrderID, ProductCode: r.ProductCode}
}

// String returns a short description for logs.
func (r *Record) String() string {
	return fmt.Sprintf("#%d %s (%s)", r.ID, r.Key(), r.Status)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Workflow = r.Workflow.Clone()
	return &c
}

// NewRecord returns a record for a key seen for the first time.
func NewRecord(id int64, key Key) *Record {
	return &Record{
		ID:          id,
		OrderID:     key.OrderID,
		ProductCode: key.ProductCode,
		Workflow:    NewWorkflow(),
	}
}

// timePtr copies a timestamp pointer.
func timePtr(t *utc.Time) *utc.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
