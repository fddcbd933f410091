package ordersync

import (
	"context"
	"sync"
	"testing"

	"github.com/agentstation/utc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/enhancer"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
	"github.com/agentstation/ordersync/pkg/store/memory"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// fakeFetcher returns canned orders.
type fakeFetcher struct {
	mu     sync.Mutex
	orders []orders.UpstreamOrder
	err    error
	calls  int
}

func (f *fakeFetcher) FetchOpenOrders(context.Context) ([]orders.UpstreamOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

func (f *fakeFetcher) set(o ...orders.UpstreamOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = o
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func item(sku, title, price string) orders.LineItem {
	return orders.LineItem{SKU: sku, Title: title, Price: decimal.RequireFromString(price), Quantity: 1}
}

func order(id, total string, items ...orders.LineItem) orders.UpstreamOrder {
	return orders.UpstreamOrder{
		ID:         orders.FlexString(id),
		CreatedAt:  "2025-01-02T10:00:00Z",
		TotalPrice: decimal.RequireFromString(total),
		LineItems:  items,
	}
}

func newTestClient(t *testing.T, f *fakeFetcher, opts ...Option) (Client, *memory.Store) {
	t.Helper()
	logging.DisableLoggingForTest(t)
	st, err := memory.New()
	require.NoError(t, err)
	c, err := New(f, st, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.AutoUpdatesOff() })
	return c, st
}

func load(t *testing.T, st store.Store) []*orders.Record {
	t.Helper()
	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	return snap.Records
}

func TestNewValidation(t *testing.T) {
	st, err := memory.New()
	require.NoError(t, err)

	_, err = New(nil, st)
	assert.Error(t, err)

	_, err = New(&fakeFetcher{}, nil)
	assert.Error(t, err)

	_, err = New(&fakeFetcher{}, st, WithAutoUpdateInterval(0))
	assert.True(t, errors.IsValidationError(err))
}

func TestSyncFirstCycle(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	c, st := newTestClient(t, f)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.CycleID)
	assert.True(t, res.Changed)
	assert.True(t, res.Written())
	assert.Equal(t, 1, res.Orders)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, int64(2), res.LastID)
	assert.Equal(t, 2, res.Write.Inserted)

	rows := load(t, st)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(1), rows[0].AllocationRatio)
	assert.Equal(t, int64(2), rows[1].AllocationRatio)
	assert.Equal(t, "100", rows[0].AllocatedTotal.String())
	assert.Equal(t, "200", rows[1].AllocatedTotal.String())
	assert.Equal(t, orders.StatusUnclaimed, rows[0].Status)
	assert.Equal(t, int64(1), rows[0].Version)
}

func TestSyncIdempotent(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	c, st := newTestClient(t, f)

	_, err := c.Sync(context.Background())
	require.NoError(t, err)
	first := load(t, st)

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.False(t, res.HasChanges())
	assert.Nil(t, res.Write)
	assert.Equal(t, 1, st.Replaces())

	second := load(t, st)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Version, second[i].Version)
	}
}

func TestSyncPreservesClaimAcrossPriceChange(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	c, st := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.Sync(ctx)
	require.NoError(t, err)
	claimed, err := c.Claim(ctx, 1, "vendor-7")
	require.NoError(t, err)
	require.Equal(t, orders.StatusClaimed, claimed.Status)

	f.set(order("1001", "400.00", item("A", "Shirt", "200.00"), item("B", "Pants", "200.00")))
	res, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed, "key set is unchanged")
	assert.True(t, res.Written(), "financial updates are persisted")
	assert.Equal(t, 2, res.Write.Updated)

	rows := load(t, st)
	require.Len(t, rows, 2)
	assert.Equal(t, orders.StatusClaimed, rows[0].Status)
	assert.Equal(t, "vendor-7", rows[0].ClaimedBy)
	require.NotNil(t, rows[0].ClaimedAt)
	assert.Equal(t, "200", rows[0].SellingPrice.String())
	assert.Equal(t, int64(1), rows[0].AllocationRatio)
	assert.Equal(t, int64(1), rows[1].AllocationRatio)
}

func TestSyncDropsVanishedKeysAndNeverReusesIDs(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	c, st := newTestClient(t, f)
	ctx := context.Background()

	var removed []int64
	c.OnRecordRemoved(func(r *orders.Record) { removed = append(removed, r.ID) })

	_, err := c.Sync(ctx)
	require.NoError(t, err)

	// The row holding the maximum id vanishes, a new key appears.
	f.set(order("1001", "100.00", item("A", "Shirt", "100.00")), order("1002", "50.00", item("C", "Hat", "50.00")))
	res, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	rows := load(t, st)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(3), rows[1].ID)
	assert.Equal(t, []int64{2}, removed)

	archived, err := c.Archived(ctx, 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "B", archived[0].Record.ProductCode)

	// Drop C and bring back B: B is a new key again and gets a fresh id.
	f.set(order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")))
	_, err = c.Sync(ctx)
	require.NoError(t, err)
	rows = load(t, st)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(4), rows[1].ID)
}

func TestSyncFetchErrorLeavesStoreUntouched(t *testing.T) {
	f := &fakeFetcher{err: errors.WrapUnavailable("http://carrier", context.DeadlineExceeded)}
	c, st := newTestClient(t, f)

	var hookErr error
	var hookRes *pkgsync.Result
	c.OnCycle(func(res *pkgsync.Result, err error) {
		hookRes, hookErr = res, err
	})

	res, err := c.Sync(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsUnavailable(err))
	assert.True(t, errors.IsFetchError(err))

	var syncErr *errors.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, StageFetch, syncErr.Stage)

	assert.Equal(t, 0, st.Replaces())
	assert.Nil(t, hookRes)
	assert.Equal(t, err, hookErr)
}

func TestSyncDryRun(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "10.00", item("A", "Shirt", "10.00")),
	}}
	c, st := newTestClient(t, f)

	res, err := c.Sync(context.Background(), pkgsync.WithDryRun(true))
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.True(t, res.HasChanges())
	assert.Nil(t, res.Write)
	assert.Empty(t, load(t, st))
	assert.Contains(t, res.Summary(), "(Dry run)")

	_, err = c.Sync(context.Background(), pkgsync.WithDryRun(true), pkgsync.WithForce(true))
	assert.True(t, errors.IsValidationError(err))
}

// stubEnhancer fills the customer name of rows missing one.
type stubEnhancer struct {
	prepared int
}

func (s *stubEnhancer) Name() string  { return "stub" }
func (s *stubEnhancer) Field() string { return enhancer.FieldCustomerName }
func (s *stubEnhancer) Priority() int { return 1 }

func (s *stubEnhancer) Prepare(context.Context) error {
	s.prepared++
	return nil
}

func (s *stubEnhancer) CanEnhance(r *orders.Record) bool { return r.CustomerName == "" }
func (s *stubEnhancer) Enhance(_ context.Context, r *orders.Record) (bool, error) {
	r.CustomerName = "Ada Lovelace"
	return true, nil
}

func TestSyncEnhancement(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	stub := &stubEnhancer{}
	c, st := newTestClient(t, f, WithEnhancers(stub))

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.NoError(t, res.EnhancementErr)
	assert.Equal(t, 2, res.EnhancementWritten)
	assert.Equal(t, 2, res.Enhancement.Enhanced[enhancer.FieldCustomerName])

	rows := load(t, st)
	for _, r := range rows {
		assert.Equal(t, "Ada Lovelace", r.CustomerName)
		assert.Equal(t, int64(2), r.Version)
	}

	// Enrichment is preserved and nothing is left to enhance.
	res, err = c.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.HasChanges())
	assert.Equal(t, 0, res.EnhancementWritten)
	assert.Equal(t, 1, stub.prepared)
	assert.Equal(t, 2, st.Replaces())
}

func TestSyncCustomerNamePlaceholderIsRepaired(t *testing.T) {
	logging.DisableLoggingForTest(t)
	ctx := context.Background()
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	st, err := memory.New()
	require.NoError(t, err)
	c, err := New(f, st, WithEnhancers(enhancer.NewCustomerNameEnhancer(st, enhancer.WithCustomerRetry())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.AutoUpdatesOff() })

	// No payload cached yet: rows get the placeholder, never a blank.
	res, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EnhancementWritten)
	for _, r := range load(t, st) {
		assert.Equal(t, "N/A", r.CustomerName)
		assert.Equal(t, int64(2), r.Version)
	}

	res, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.HasChanges())
	assert.Equal(t, 0, res.EnhancementWritten)

	require.NoError(t, st.PutPayload(ctx, []byte(`[{"id":1001,"customer":{"first_name":"Ada","last_name":"Lovelace"},"line_items":[]}]`)))
	res, err = c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EnhancementWritten)
	for _, r := range load(t, st) {
		assert.Equal(t, "Ada Lovelace", r.CustomerName)
		assert.Equal(t, int64(3), r.Version)
	}
}

func TestSyncSkipEnhancement(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{order("1001", "10.00", item("A", "Shirt", "10.00"))}}
	stub := &stubEnhancer{}
	c, st := newTestClient(t, f, WithEnhancers(stub))

	_, err := c.Sync(context.Background(), pkgsync.WithSkipEnhancement(true))
	require.NoError(t, err)
	assert.Equal(t, 0, stub.prepared)
	assert.Empty(t, load(t, st)[0].CustomerName)
}

// racingStore simulates a claim landing between the cycle's read and write.
type racingStore struct {
	*memory.Store
	race bool
}

func (s *racingStore) Load(ctx context.Context) (*store.Snapshot, error) {
	snap, err := s.Store.Load(ctx)
	if err != nil || !s.race || len(snap.Records) == 0 {
		return snap, err
	}
	s.race = false
	r := snap.Records[0]
	_, err = s.UpdateWorkflow(ctx, r.ID, r.Version, func(w *orders.Workflow) error {
		return w.Claim("someone-else", utc.Now())
	})
	return snap, err
}

func TestSyncConflictAbortsCycle(t *testing.T) {
	logging.DisableLoggingForTest(t)
	mem, err := memory.New()
	require.NoError(t, err)
	st := &racingStore{Store: mem}

	f := &fakeFetcher{orders: []orders.UpstreamOrder{order("1001", "10.00", item("A", "Shirt", "10.00"))}}
	c, err := New(f, st)
	require.NoError(t, err)

	_, err = c.Sync(context.Background())
	require.NoError(t, err)

	st.race = true
	f.set(order("1001", "12.00", item("A", "Shirt", "12.00")))
	_, err = c.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// The concurrent claim survives and the next cycle applies the price.
	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Written())
	rows := load(t, st)
	assert.Equal(t, "someone-else", rows[0].ClaimedBy)
	assert.Equal(t, "12", rows[0].SellingPrice.String())
}

func TestSyncHooks(t *testing.T) {
	f := &fakeFetcher{orders: []orders.UpstreamOrder{
		order("1001", "300.00", item("A", "Shirt", "100.00"), item("B", "Pants", "200.00")),
	}}
	c, _ := newTestClient(t, f)

	var added []string
	var updated []differ.RecordUpdate
	var cycles int
	c.OnRecordAdded(func(r *orders.Record) { added = append(added, r.ProductCode) })
	c.OnRecordUpdated(func(u differ.RecordUpdate) { updated = append(updated, u) })
	c.OnCycle(func(*pkgsync.Result, error) { cycles++ })

	_, err := c.Sync(context.Background())
	require.NoError(t, err)
	f.set(order("1001", "300.00", item("A", "Shirt XL", "100.00"), item("B", "Pants", "200.00")))
	_, err = c.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, added)
	require.Len(t, updated, 1)
	assert.True(t, updated[0].Changed("product_name"))
	assert.Equal(t, 2, cycles)
}
