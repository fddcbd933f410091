// Package storetest holds behavior tests shared by every record store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/agentstation/utc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

// Backend is a store under test.
type Backend interface {
	store.Store
	store.WorkflowUpdater
}

// Factory opens a fresh, empty backend. Reopen, when set, opens a second
// handle on the same data to check durability.
type Factory struct {
	Open   func(t *testing.T) Backend
	Reopen func(t *testing.T, b Backend) Backend
}

// Record builds an unclaimed row priced at price.
func Record(id int64, orderID, code, price string) *orders.Record {
	r := orders.NewRecord(id, orders.Key{OrderID: orderID, ProductCode: code})
	r.ProductName = "Item " + code
	r.OrderDate = "2025-01-02T10:00:00Z"
	r.SellingPrice = decimal.RequireFromString(price)
	r.OrderTotal = decimal.RequireFromString(price)
	r.PaymentType = orders.PaymentPrepaid
	r.AllocationRatio = 1
	r.AllocatedTotal = decimal.RequireFromString(price)
	r.PrepaidAmount = decimal.RequireFromString(price)
	r.CollectableAmount = decimal.Zero
	return r
}

// Run executes the shared behavior tests.
func Run(t *testing.T, f Factory) {
	t.Run("empty", func(t *testing.T) {
		s := f.Open(t)
		snap, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, snap.Records)
		assert.Zero(t, snap.HighWater)
	})

	t.Run("replace and load", func(t *testing.T) { testReplaceAndLoad(t, f) })
	t.Run("unchanged replace", func(t *testing.T) { testUnchangedReplace(t, f) })
	t.Run("update bumps version", func(t *testing.T) { testUpdateBumpsVersion(t, f) })
	t.Run("removal keeps high water", func(t *testing.T) { testRemovalKeepsHighWater(t, f) })
	t.Run("workflow update", func(t *testing.T) { testWorkflowUpdate(t, f) })
	t.Run("conflict on stale version", func(t *testing.T) { testConflict(t, f) })
	t.Run("rejects invalid rows", func(t *testing.T) { testInvalidRows(t, f) })

	if f.Reopen != nil {
		t.Run("durable", func(t *testing.T) { testDurable(t, f) })
	}
}

func testReplaceAndLoad(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	a := Record(1, "100", "A", "100.00")
	b := Record(2, "100", "B", "200.00")
	b.CustomerName = "Ada Lovelace"
	claimedAt := utc.Now()
	b.Status = orders.StatusClaimed
	b.ClaimedBy = "vendor-1"
	b.ClaimedAt = &claimedAt

	res, err := s.Replace(ctx, []*orders.Record{b, a})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, int64(2), res.HighWater)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, int64(1), snap.Records[0].ID)
	assert.Equal(t, int64(2), snap.Records[1].ID)
	assert.Equal(t, int64(1), snap.Records[0].Version)
	assert.Equal(t, int64(2), snap.HighWater)

	got := snap.Records[1]
	assert.Equal(t, "Ada Lovelace", got.CustomerName)
	assert.Equal(t, orders.StatusClaimed, got.Status)
	assert.Equal(t, "vendor-1", got.ClaimedBy)
	require.NotNil(t, got.ClaimedAt)
	assert.True(t, got.ClaimedAt.Time.Equal(claimedAt.Time))
	assert.True(t, decimal.RequireFromString("200").Equal(got.SellingPrice))
	assert.Equal(t, orders.PaymentPrepaid, got.PaymentType)
}

func testUnchangedReplace(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{Record(1, "100", "A", "10.00")})
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	res, err := s.Replace(ctx, snap.Records)
	require.NoError(t, err)
	assert.False(t, res.Written())
	assert.Equal(t, 1, res.Unchanged)
}

func testUpdateBumpsVersion(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{Record(1, "100", "A", "10.00")})
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	row := snap.Records[0].Clone()
	row.SellingPrice = decimal.RequireFromString("12.50")
	res, err := s.Replace(ctx, []*orders.Record{row})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "12.50", got.SellingPrice.StringFixed(2))
}

func testRemovalKeepsHighWater(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{
		Record(1, "100", "A", "10.00"),
		Record(2, "100", "B", "20.00"),
	})
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	res, err := s.Replace(ctx, snap.Records[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	snap, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, int64(2), snap.HighWater)

	if a, ok := s.(store.Archiver); ok {
		archived, err := a.Archived(ctx, 10)
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, int64(2), archived[0].Record.ID)
		assert.False(t, archived[0].ArchivedAt.Time.IsZero())
	}

	// id 2 may never be handed out again
	_, err = s.Replace(ctx, append(snap.Records, Record(2, "200", "C", "5.00")))
	assert.True(t, errors.IsValidationError(err))

	_, err = s.Get(ctx, 2)
	assert.True(t, errors.IsNotFound(err))
}

func testWorkflowUpdate(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{Record(1, "100", "A", "10.00")})
	require.NoError(t, err)

	at := utc.Now()
	got, err := s.UpdateWorkflow(ctx, 1, 1, func(w *orders.Workflow) error {
		return w.Claim("vendor-7", at)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, orders.StatusClaimed, got.Status)

	stored, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "vendor-7", stored.ClaimedBy)
	assert.Equal(t, int64(2), stored.Version)

	_, err = s.UpdateWorkflow(ctx, 1, 2, func(w *orders.Workflow) error {
		return w.Claim("vendor-8", at)
	})
	assert.True(t, errors.IsValidationError(err))

	stored, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version, "failed transition must not bump the version")

	_, err = s.UpdateWorkflow(ctx, 99, 1, func(*orders.Workflow) error { return nil })
	assert.True(t, errors.IsNotFound(err))
}

func testConflict(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{Record(1, "100", "A", "10.00")})
	require.NoError(t, err)

	// the cycle reads version 1
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	// a vendor claims the row meanwhile
	_, err = s.UpdateWorkflow(ctx, 1, 1, func(w *orders.Workflow) error {
		return w.Claim("vendor-1", utc.Now())
	})
	require.NoError(t, err)

	_, err = s.Replace(ctx, snap.Records)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	stored, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusClaimed, stored.Status)

	_, err = s.UpdateWorkflow(ctx, 1, 1, func(*orders.Workflow) error { return nil })
	assert.True(t, errors.IsConflict(err))
}

func testInvalidRows(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{
		Record(1, "100", "A", "10.00"),
		Record(1, "100", "B", "10.00"),
	})
	assert.True(t, errors.IsValidationError(err))

	_, err = s.Replace(ctx, []*orders.Record{Record(0, "100", "A", "10.00")})
	assert.True(t, errors.IsValidationError(err))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
}

func testDurable(t *testing.T, f Factory) {
	ctx := context.Background()
	s := f.Open(t)

	_, err := s.Replace(ctx, []*orders.Record{
		Record(1, "100", "A", "10.00"),
		Record(2, "100", "B", "20.00"),
	})
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Replace(ctx, snap.Records[:1])
	require.NoError(t, err)

	reopened := f.Reopen(t, s)
	snap, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "100/A", snap.Records[0].Key().String())
	assert.Equal(t, int64(2), snap.HighWater)
}
