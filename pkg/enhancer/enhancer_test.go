package enhancer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
)

type payloadFunc func(ctx context.Context) ([]byte, error)

func (f payloadFunc) LatestPayload(ctx context.Context) ([]byte, error) { return f(ctx) }

func staticPayload(body string) PayloadSource {
	return payloadFunc(func(context.Context) ([]byte, error) { return []byte(body), nil })
}

type mapMatcher map[string]string

func (m mapMatcher) Match(name string) (string, bool) {
	ref, ok := m[name]
	return ref, ok
}

type panicMatcher struct{}

func (panicMatcher) Match(string) (string, bool) { panic("boom") }

func record(id int64, orderID, code, name string) *orders.Record {
	r := orders.NewRecord(id, orders.Key{OrderID: orderID, ProductCode: code})
	r.ProductName = name
	return r
}

const payload = `{"orders":[
	{"id":101,"customer":{"first_name":"Ada","last_name":"Lovelace"},"line_items":[]},
	{"id":"102","shipping_address":{"first_name":"Grace","last_name":"Hopper"},"line_items":[]},
	{"id":"103","line_items":[]}
]}`

func TestCustomerNameEnhancer(t *testing.T) {
	ctx := context.Background()
	e := NewCustomerNameEnhancer(staticPayload(payload))
	require.NoError(t, e.Prepare(ctx))

	tests := []struct {
		orderID string
		want    string
		matched bool
	}{
		{"101", "Ada Lovelace", true},
		{"102", "Grace Hopper", true},
		{"103", "N/A", false},
		{"999", "N/A", false},
	}
	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			r := record(1, tt.orderID, "A", "Tee")
			require.True(t, e.CanEnhance(r))
			matched, err := e.Enhance(ctx, r)
			require.NoError(t, err)
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.want, r.CustomerName)
		})
	}
}

func TestCustomerNameEnhancerCanEnhance(t *testing.T) {
	r := record(1, "101", "A", "Tee")
	r.CustomerName = "N/A"

	assert.False(t, NewCustomerNameEnhancer(nil).CanEnhance(r))
	assert.True(t, NewCustomerNameEnhancer(nil, WithCustomerRetry()).CanEnhance(r))

	r.CustomerName = "Someone"
	assert.False(t, NewCustomerNameEnhancer(nil, WithCustomerRetry()).CanEnhance(r))
}

func TestCustomerNameEnhancerTitleCase(t *testing.T) {
	ctx := context.Background()
	e := NewCustomerNameEnhancer(
		staticPayload(`[{"id":"1","customer":{"first_name":"ada","last_name":"LOVELACE"},"line_items":[]}]`),
		WithTitleCase(),
	)
	require.NoError(t, e.Prepare(ctx))

	r := record(1, "1", "A", "Tee")
	_, err := e.Enhance(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", r.CustomerName)
}

func TestCustomerNameEnhancerPrepareErrors(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, NewCustomerNameEnhancer(staticPayload(`{"unexpected":true}`)).Prepare(ctx))

	missing := errors.New("no payload cached")
	err := NewCustomerNameEnhancer(payloadFunc(func(context.Context) ([]byte, error) {
		return nil, missing
	})).Prepare(ctx)
	assert.ErrorIs(t, err, missing)
}

func TestCustomerNameEnhancerFailedPrepareForgetsNames(t *testing.T) {
	ctx := context.Background()
	body := payload
	e := NewCustomerNameEnhancer(payloadFunc(func(context.Context) ([]byte, error) {
		if body == "" {
			return nil, errors.New("cache empty")
		}
		return []byte(body), nil
	}))
	require.NoError(t, e.Prepare(ctx))

	body = ""
	require.Error(t, e.Prepare(ctx))

	r := record(1, "101", "A", "Tee")
	matched, err := e.Enhance(ctx, r)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Equal(t, "N/A", r.CustomerName)
}

func TestCustomerNameEnhancerWithoutSource(t *testing.T) {
	ctx := context.Background()
	e := NewCustomerNameEnhancer(nil)
	require.NoError(t, e.Prepare(ctx))

	r := record(1, "101", "A", "Tee")
	matched, err := e.Enhance(ctx, r)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Equal(t, "N/A", r.CustomerName)
}

func TestProductImageEnhancer(t *testing.T) {
	ctx := context.Background()
	e := NewProductImageEnhancer(mapMatcher{"Zip Hoodie": "hoodie.png"})

	hit := record(1, "1", "A", "Zip Hoodie")
	matched, err := e.Enhance(ctx, hit)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, "hoodie.png", hit.ProductImageRef)

	miss := record(2, "1", "B", "Mystery Box")
	matched, err = e.Enhance(ctx, miss)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Equal(t, "placeholder.png", miss.ProductImageRef)
	assert.False(t, e.CanEnhance(miss))
	assert.True(t, NewProductImageEnhancer(nil, WithImageRetry()).CanEnhance(miss))
}

func TestProductImageEnhancerDegrades(t *testing.T) {
	ctx := context.Background()

	t.Run("nil matcher", func(t *testing.T) {
		r := record(1, "1", "A", "Tee")
		matched, err := NewProductImageEnhancer(nil, WithImagePlaceholder("none.png")).Enhance(ctx, r)
		require.NoError(t, err)
		assert.False(t, matched)
		assert.Equal(t, "none.png", r.ProductImageRef)
	})

	t.Run("panicking matcher", func(t *testing.T) {
		r := record(1, "1", "A", "Tee")
		matched, err := NewProductImageEnhancer(panicMatcher{}).Enhance(ctx, r)
		require.NoError(t, err)
		assert.False(t, matched)
		assert.Equal(t, "placeholder.png", r.ProductImageRef)
	})
}

func TestPipelineOrdersByPriority(t *testing.T) {
	img := NewProductImageEnhancer(nil)
	cust := NewCustomerNameEnhancer(nil)
	p := NewPipeline(img, cust)

	require.Len(t, p.Enhancers(), 2)
	assert.Equal(t, "customer_name", p.Enhancers()[0].Name())
	assert.Equal(t, "product_image", p.Enhancers()[1].Name())
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	p := NewPipeline(
		NewCustomerNameEnhancer(staticPayload(payload)),
		NewProductImageEnhancer(mapMatcher{"Tee": "tee.png"}),
	)

	done := record(3, "101", "C", "Tee")
	done.CustomerName = "Ada Lovelace"
	done.ProductImageRef = "tee.png"

	rows := []*orders.Record{
		record(1, "101", "A", "Tee"),
		record(2, "999", "B", "Mug"),
		done,
		nil,
	}

	changed, stats := p.Run(ctx, rows)
	require.Len(t, changed, 2)
	assert.Equal(t, int64(1), changed[0].ID)
	assert.Equal(t, int64(2), changed[1].ID)

	assert.Equal(t, "Ada Lovelace", rows[0].CustomerName)
	assert.Equal(t, "tee.png", rows[0].ProductImageRef)
	assert.Equal(t, "N/A", rows[1].CustomerName)
	assert.Equal(t, "placeholder.png", rows[1].ProductImageRef)

	assert.Equal(t, 1, stats.Enhanced[FieldCustomerName])
	assert.Equal(t, 1, stats.Misses[FieldCustomerName])
	assert.Equal(t, 1, stats.Enhanced[FieldProductImageRef])
	assert.Equal(t, 1, stats.Misses[FieldProductImageRef])
	assert.Equal(t, 4, stats.Total())
}

func TestPipelineStampsPlaceholderWhenEnhancerUnavailable(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	p := NewPipeline(
		NewCustomerNameEnhancer(payloadFunc(func(context.Context) ([]byte, error) {
			return nil, errors.New("cache empty")
		})),
		NewProductImageEnhancer(mapMatcher{}),
	)

	rows := []*orders.Record{record(1, "1", "A", "Tee")}
	changed, stats := p.Run(ctx, rows)

	require.Len(t, changed, 1)
	assert.Equal(t, "N/A", rows[0].CustomerName)
	assert.Equal(t, "placeholder.png", rows[0].ProductImageRef)
	assert.Equal(t, 1, stats.Failed[FieldCustomerName])
	assert.Equal(t, 1, stats.Misses[FieldCustomerName])
	tl.AssertContains(t, "cache empty")
}

func TestPipelineRetryRepairsPlaceholder(t *testing.T) {
	ctx := context.Background()
	body := ""
	p := NewPipeline(NewCustomerNameEnhancer(payloadFunc(func(context.Context) ([]byte, error) {
		if body == "" {
			return nil, errors.New("cache empty")
		}
		return []byte(body), nil
	}), WithCustomerRetry()))

	rows := []*orders.Record{record(1, "101", "A", "Tee")}

	changed, _ := p.Run(ctx, rows)
	require.Len(t, changed, 1)
	assert.Equal(t, "N/A", rows[0].CustomerName)

	changed, stats := p.Run(ctx, rows)
	assert.Empty(t, changed, "an unchanged placeholder is not rewritten")
	assert.Zero(t, stats.Total())

	body = payload
	changed, stats = p.Run(ctx, rows)
	require.Len(t, changed, 1)
	assert.Equal(t, "Ada Lovelace", rows[0].CustomerName)
	assert.Equal(t, 1, stats.Enhanced[FieldCustomerName])
}

func TestPipelineNothingPending(t *testing.T) {
	calls := 0
	p := NewPipeline(NewCustomerNameEnhancer(payloadFunc(func(context.Context) ([]byte, error) {
		calls++
		return []byte(payload), nil
	})))

	r := record(1, "101", "A", "Tee")
	r.CustomerName = "Known"
	changed, _ := p.Run(context.Background(), []*orders.Record{r})

	assert.Empty(t, changed)
	assert.Zero(t, calls)
}
