// Package payment classifies line items as prepaid or collect-on-delivery
// and derives the prepaid advance and the amount left to collect.
package payment

import (
	"strings"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/shopspring/decimal"
)

// Classification is the payment outcome for one line item.
type Classification struct {
	PaymentType       orders.PaymentType
	PrepaidAmount     decimal.Decimal
	CollectableAmount decimal.Decimal
}

// Classifier applies the collect policy.
type Classifier struct {
	collectTag string
	advance    decimal.Decimal
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithCollectTag sets the order tag that marks collect-on-delivery.
func WithCollectTag(tag string) Option {
	return func(c *Classifier) error {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return errors.NewValidationError("collect_tag", tag, "cannot be empty")
		}
		c.collectTag = tag
		return nil
	}
}

// WithAdvancePercent sets the share of a collect item booked as prepaid.
func WithAdvancePercent(percent decimal.Decimal) Option {
	return func(c *Classifier) error {
		if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
			return errors.NewValidationError("advance_percent", percent.String(), "must be between 0 and 100")
		}
		c.advance = percent.Div(decimal.NewFromInt(100))
		return nil
	}
}

// New returns a Classifier using the COD tag and a 10% advance unless
// configured otherwise.
func New(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		collectTag: constants.DefaultCollectTag,
		advance:    decimal.New(constants.DefaultAdvancePercent, -2),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// IsCollect reports whether tags contain the collect marker.
func (c *Classifier) IsCollect(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), c.collectTag) {
			return true
		}
	}
	return false
}

// Classify derives the payment fields of one line item. orderTotal is
// accepted for parity with the allocation inputs; the advance is computed
// from the item's own allocated total.
func (c *Classifier) Classify(tags []string, orderTotal, allocatedTotal decimal.Decimal) Classification {
	if !c.IsCollect(tags) {
		return Classification{
			PaymentType:       orders.PaymentPrepaid,
			PrepaidAmount:     allocatedTotal,
			CollectableAmount: decimal.Zero,
		}
	}

	prepaid := allocatedTotal.Mul(c.advance).Round(2)
	return Classification{
		PaymentType:       orders.PaymentCollect,
		PrepaidAmount:     prepaid,
		CollectableAmount: allocatedTotal.Sub(prepaid),
	}
}
