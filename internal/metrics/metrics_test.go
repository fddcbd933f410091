package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/pkg/enhancer"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/store"
	"github.com/agentstation/ordersync/pkg/sync"
)

func TestObserveWrittenCycle(t *testing.T) {
	m := NewRegistry()
	m.ObserveCycle(&sync.Result{
		StartedAt:        utc.Now(),
		Duration:         250 * time.Millisecond,
		Rows:             7,
		SkippedOrders:    1,
		DegenerateSplits: 2,
		Write:            &store.WriteResult{Inserted: 3, Updated: 1, Deleted: 2},
		Enhancement: enhancer.Stats{
			Misses: map[string]int{enhancer.FieldProductImageRef: 4},
			Failed: map[string]int{enhancer.FieldCustomerName: 1},
		},
	}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("written")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RecordsActive))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsChanged.WithLabelValues("insert")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsChanged.WithLabelValues("delete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DegenerateSplits))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.EnhancementMisses.WithLabelValues(enhancer.FieldProductImageRef)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnhancementFailed.WithLabelValues(enhancer.FieldCustomerName)))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccess), 0.0)
}

func TestObserveUnchangedAndDryRun(t *testing.T) {
	m := NewRegistry()
	m.ObserveCycle(&sync.Result{StartedAt: utc.Now()}, nil)
	m.ObserveCycle(&sync.Result{StartedAt: utc.Now(), DryRun: true}, nil)
	m.ObserveCycle(nil, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("dry_run")))
}

func TestObserveFailedCycle(t *testing.T) {
	m := NewRegistry()

	m.ObserveCycle(nil, errors.NewSyncError("c1", "fetch", errors.NewUpstreamError("u", 401, "")))
	m.ObserveCycle(nil, errors.NewSyncError("c2", "fetch", errors.NewTimeoutError("fetch", "15s", "slow")))
	m.ObserveCycle(nil, errors.NewSyncError("c3", "write", errors.NewConflictError(1, 1, 2)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("fetch_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("timeout")))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{errors.WrapUnavailable("u", io.EOF), "fetch_error"},
		{errors.NewConflictError(1, 1, 2), "conflict"},
		{fmt.Errorf("%w: %w", errors.ErrCanceled, context.Canceled), "canceled"},
		{errors.WrapIO("write", "f", io.ErrShortWrite), "store_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}

	assert.Equal(t, "malformed", FetchErrorKind(errors.NewMalformedResponseError("u", "x", nil)))
	assert.Equal(t, "rejected", FetchErrorKind(errors.NewUpstreamError("u", 500, "")))
	assert.Equal(t, "unavailable", FetchErrorKind(errors.WrapUnavailable("u", io.EOF)))
}

func TestHandler(t *testing.T) {
	m := NewRegistry()
	m.ObserveCycle(&sync.Result{StartedAt: utc.Now(), Rows: 2}, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ordersync_records_active 2")
	assert.Contains(t, rec.Body.String(), `ordersync_cycles_total{outcome="unchanged"} 1`)
}
