package watch

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/cmd/application"
	"github.com/agentstation/ordersync/internal/metrics"
	"github.com/agentstation/ordersync/internal/server"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store/memory"
)

type stubFetcher struct{}

func (stubFetcher) FetchOpenOrders(context.Context) ([]orders.UpstreamOrder, error) {
	return []orders.UpstreamOrder{{
		ID:         "1001",
		TotalPrice: decimal.RequireFromString("100.00"),
		LineItems: []orders.LineItem{
			{SKU: "A", Title: "Shirt", Price: decimal.RequireFromString("100.00"), Quantity: 1},
		},
	}}, nil
}

func newMock(t *testing.T) (*application.Mock, ordersync.Client) {
	t.Helper()
	logging.DisableLoggingForTest(t)
	st, err := memory.New()
	require.NoError(t, err)
	client, err := ordersync.New(stubFetcher{}, st, ordersync.WithAutoUpdateInterval(time.Hour))
	require.NoError(t, err)
	return &application.Mock{
		ClientFunc:      func() (ordersync.Client, error) { return client, nil },
		MetricsRegistry: metrics.NewRegistry(),
		Server:          server.DefaultConfig(),
		Interval:        time.Hour,
	}, client
}

func TestWatch_RunsInitialCycleAndStops(t *testing.T) {
	app, client := newMock(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewCommand(app)
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool {
		rows, err := client.List(context.Background())
		return err == nil && len(rows) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_SkipInitial(t *testing.T) {
	app, client := newMock(t)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewCommand(app)
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--skip-initial", "--no-metrics"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	rows, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWatch_BadAddr(t *testing.T) {
	app, _ := newMock(t)

	cmd := NewCommand(app)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--addr", "nowhere"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}
