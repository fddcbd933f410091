package payment_test

import (
	"testing"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c, err := payment.New()
	require.NoError(t, err)

	tests := []struct {
		name        string
		tags        []string
		allocated   string
		paymentType orders.PaymentType
		prepaid     string
		collectable string
	}{
		{"no tags is prepaid", nil, "120.00", orders.PaymentPrepaid, "120.00", "0.00"},
		{"other tags is prepaid", []string{"gift", "vip"}, "55.55", orders.PaymentPrepaid, "55.55", "0.00"},
		{"cod tag is collect", []string{"COD"}, "200.00", orders.PaymentCollect, "20.00", "180.00"},
		{"tag matching ignores case and padding", []string{" cod "}, "99.99", orders.PaymentCollect, "10.00", "89.99"},
		{"advance rounds to cents", []string{"COD"}, "33.33", orders.PaymentCollect, "3.33", "30.00"},
		{"zero allocation", []string{"COD"}, "0", orders.PaymentCollect, "0.00", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocated := decimal.RequireFromString(tt.allocated)
			got := c.Classify(tt.tags, decimal.NewFromInt(500), allocated)

			assert.Equal(t, tt.paymentType, got.PaymentType)
			assert.Equal(t, tt.prepaid, got.PrepaidAmount.StringFixed(2))
			assert.Equal(t, tt.collectable, got.CollectableAmount.StringFixed(2))
			assert.True(t, got.PrepaidAmount.Add(got.CollectableAmount).Equal(allocated) || got.PaymentType == orders.PaymentPrepaid)
		})
	}
}

func TestOptions(t *testing.T) {
	t.Run("custom tag and rate", func(t *testing.T) {
		c, err := payment.New(payment.WithCollectTag("cash"), payment.WithAdvancePercent(decimal.NewFromInt(25)))
		require.NoError(t, err)

		got := c.Classify([]string{"CASH"}, decimal.Zero, decimal.NewFromInt(80))
		assert.Equal(t, orders.PaymentCollect, got.PaymentType)
		assert.Equal(t, "20.00", got.PrepaidAmount.StringFixed(2))
		assert.False(t, c.IsCollect([]string{"COD"}))
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := payment.New(payment.WithCollectTag("  "))
		assert.True(t, errors.IsValidationError(err))

		_, err = payment.New(payment.WithAdvancePercent(decimal.NewFromInt(101)))
		assert.True(t, errors.IsValidationError(err))
	})
}
