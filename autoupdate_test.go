package ordersync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store/memory"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

func TestAutoUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)
	logging.DisableLoggingForTest(t)

	st, err := memory.New()
	require.NoError(t, err)
	f := &fakeFetcher{orders: []orders.UpstreamOrder{order("1001", "10.00", item("A", "Shirt", "10.00"))}}

	c, err := New(f, st, WithAutoUpdates(true), WithAutoUpdateInterval(10*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.AutoUpdatesOff())
	require.NoError(t, c.AutoUpdatesOff())

	calls := f.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, f.Calls(), "no cycles after AutoUpdatesOff")

	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, 1, st.Replaces())
}

func TestAutoUpdatesSurviveFailedCycles(t *testing.T) {
	defer goleak.VerifyNone(t)
	logging.DisableLoggingForTest(t)

	st, err := memory.New()
	require.NoError(t, err)
	f := &fakeFetcher{err: errors.WrapUnavailable("http://carrier", context.DeadlineExceeded)}

	c, err := New(f, st, WithAutoUpdateInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, c.AutoUpdatesOn())
	// Restarting replaces the running loop.
	require.NoError(t, c.AutoUpdatesOn())

	require.Eventually(t, func() bool { return f.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.AutoUpdatesOff())
	assert.Equal(t, 0, st.Replaces())
}

func TestAutoUpdatesOffFromCycleHook(t *testing.T) {
	defer goleak.VerifyNone(t)
	logging.DisableLoggingForTest(t)

	st, err := memory.New()
	require.NoError(t, err)
	f := &fakeFetcher{orders: []orders.UpstreamOrder{order("1001", "10.00", item("A", "Shirt", "10.00"))}}

	c, err := New(f, st, WithAutoUpdateInterval(10*time.Millisecond))
	require.NoError(t, err)

	stopped := make(chan struct{})
	var once sync.Once
	c.OnCycle(func(*pkgsync.Result, error) {
		once.Do(func() {
			assert.NoError(t, c.AutoUpdatesOff())
			close(stopped)
		})
	})
	require.NoError(t, c.AutoUpdatesOn())

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("AutoUpdatesOff blocked inside a cycle hook")
	}

	calls := f.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, f.Calls(), "no cycles after AutoUpdatesOff")
	require.NoError(t, c.AutoUpdatesOff())
}
