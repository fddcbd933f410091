package carrier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/internal/transport"
	pkgerrors "github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/store/memory"
)

const order = `{"id":1001,"total_price":"300.00","tags":"COD, gift","customer":{"first_name":"Ada","last_name":"Lovelace"},
	"line_items":[{"sku":"A","title":"Tee","price":"100.00","quantity":1},{"sku":"B","title":"Mug","price":"200.00","quantity":1}]}`

func newServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var got http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r.Clone(context.Background())
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: baseURL,
		Path:    "/api/orders",
		APIKey:  "secret",
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestFetchOpenOrdersEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[` + order + `]`},
		{"orders object", `{"orders":[` + order + `]}`},
		{"success message", `{"success":true,"message":[` + order + `]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newServer(t, http.StatusOK, tt.body)
			cache, err := memory.New()
			require.NoError(t, err)

			c := newClient(t, srv.URL, WithPayloadCache(cache))
			list, err := c.FetchOpenOrders(context.Background())
			require.NoError(t, err)

			require.Len(t, list, 1)
			assert.Equal(t, "1001", list[0].OrderID())
			assert.True(t, list[0].HasTag("cod"))
			assert.Len(t, list[0].Lines(), 2)

			assert.Equal(t, "/api/orders", got.URL.Path)
			assert.Equal(t, "open", got.URL.Query().Get("status"))
			assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))

			cached, err := cache.LatestPayload(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(cached))
		})
	}
}

func TestFetchOpenOrdersErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		check        func(error) bool
		unauthorized bool
	}{
		{"server error", http.StatusBadGateway, "bad gateway", pkgerrors.IsUpstreamRejected, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, pkgerrors.IsUpstreamRejected, true},
		{"forbidden", http.StatusForbidden, "", pkgerrors.IsUpstreamRejected, true},
		{"success false", http.StatusOK, `{"success":false,"message":"token expired"}`, pkgerrors.IsUpstreamRejected, false},
		{"unknown envelope", http.StatusOK, `{"data":[]}`, pkgerrors.IsMalformedResponse, false},
		{"not json", http.StatusOK, `<html>maintenance</html>`, pkgerrors.IsMalformedResponse, false},
		{"empty body", http.StatusOK, ``, pkgerrors.IsMalformedResponse, false},
		{"bad order list", http.StatusOK, `[{"id":{}}]`, pkgerrors.IsMalformedResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			cache, err := memory.New()
			require.NoError(t, err)

			_, err = newClient(t, srv.URL, WithPayloadCache(cache)).FetchOpenOrders(context.Background())
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
			assert.True(t, pkgerrors.IsFetchError(err))
			assert.Equal(t, tt.unauthorized, errors.Is(err, pkgerrors.ErrUnauthorized))
			assert.Contains(t, err.Error(), srv.URL, "error names the endpoint")
			assert.NotContains(t, err.Error(), "secret")

			cached, err := cache.LatestPayload(context.Background())
			if tt.status != http.StatusOK || tt.body == "" {
				assert.True(t, pkgerrors.IsNotFound(err), "rejected and empty responses are not cached")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(cached), "payload is cached before it is recognized")
		})
	}
}

func TestFetchOpenOrdersSuccessFalseBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success":false,"message":"token expired"}`)
	_, err := newClient(t, srv.URL).FetchOpenOrders(context.Background())

	var upstream *pkgerrors.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusOK, upstream.StatusCode)
	assert.Equal(t, "token expired", upstream.Body)
}

func TestFetchOpenOrdersUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).FetchOpenOrders(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.False(t, pkgerrors.IsTimeout(err))
}

func TestFetchOpenOrdersTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.FetchOpenOrders(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTimeout(err), "got %v", err)
}

func TestFetchOpenOrdersContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newClient(t, srv.URL).FetchOpenOrders(ctx)
	assert.True(t, pkgerrors.IsTimeout(err), "got %v", err)
}

func TestFetchOpenOrdersCanceled(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `[]`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(t, srv.URL).FetchOpenOrders(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrCanceled)
	assert.False(t, pkgerrors.IsFetchError(err))
}

func TestFetchOpenOrdersTooLarge(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `[`+strings.Repeat(" ", 64)+`]`)
	c, err := New(Config{BaseURL: srv.URL, MaxBytes: 16})
	require.NoError(t, err)

	_, err = c.FetchOpenOrders(context.Background())
	assert.True(t, pkgerrors.IsMalformedResponse(err))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing base url", Config{}},
		{"bad scheme", Config{BaseURL: "ftp://carrier.example.com"}},
		{"timeout too short", Config{BaseURL: "https://carrier.example.com", Timeout: 5 * time.Second}},
		{"timeout too long", Config{BaseURL: "https://carrier.example.com", Timeout: 30 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestEndpointCarriesStatusFilter(t *testing.T) {
	c, err := New(Config{
		BaseURL:     "https://carrier.example.com/",
		Path:        "v2/orders",
		StatusParam: "fulfillment_status",
		StatusValue: "unfulfilled",
		Auth:        &transport.SchemeAuth{Header: "X-Api-Key"},
		Timeout:     20 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://carrier.example.com/v2/orders?fulfillment_status=unfulfilled", c.Endpoint())
}

func TestFetchOpenOrdersKeepsOrdersWithBlankAmounts(t *testing.T) {
	body := `[{"id":1,"total_price":"","line_items":[{"sku":"A","title":"Tee","price":"","quantity":1}]},` + order + `]`
	srv, _ := newServer(t, http.StatusOK, body)

	list, err := newClient(t, srv.URL).FetchOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].TotalPrice.IsZero())
	assert.True(t, list[0].LineItems[0].Price.IsZero())
	assert.Equal(t, "1001", list[1].OrderID())
	assert.Equal(t, "300.00", list[1].TotalPrice.StringFixed(2))
}
