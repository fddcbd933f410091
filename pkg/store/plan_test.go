package store_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
	"github.com/agentstation/ordersync/pkg/store/storetest"
)

func stored(id int64, order, code, price string, version int64) *orders.Record {
	r := storetest.Record(id, order, code, price)
	r.Version = version
	return r
}

func TestNewPlan(t *testing.T) {
	current := []*orders.Record{
		stored(1, "100", "A", "10.00", 3),
		stored(2, "100", "B", "20.00", 1),
		stored(3, "101", "A", "5.00", 2),
	}

	changed := current[0].Clone()
	changed.SellingPrice = decimal.RequireFromString("11.00")

	incoming := []*orders.Record{
		changed,
		current[1].Clone(),
		storetest.Record(4, "102", "Z", "7.00"),
	}

	plan, err := store.NewPlan(current, incoming, 0)
	require.NoError(t, err)

	require.Len(t, plan.Update, 1)
	assert.Equal(t, int64(4), plan.Update[0].Version)
	assert.Equal(t, int64(3), changed.Version, "input rows are not modified")

	require.Len(t, plan.Insert, 1)
	assert.Equal(t, int64(1), plan.Insert[0].Version)

	require.Len(t, plan.Delete, 1)
	assert.Equal(t, int64(3), plan.Delete[0].ID)

	assert.Equal(t, 1, plan.Unchanged)
	assert.Equal(t, int64(4), plan.HighWater)
	assert.False(t, plan.Empty())

	res := plan.Result(1)
	assert.Equal(t, 1, res.Archived)
	assert.True(t, res.Written())
}

func TestNewPlanErrors(t *testing.T) {
	current := []*orders.Record{stored(1, "100", "A", "10.00", 2)}

	tests := []struct {
		name      string
		incoming  []*orders.Record
		highWater int64
		conflict  bool
	}{
		{
			name: "stale version",
			incoming: func() []*orders.Record {
				r := stored(1, "100", "A", "12.00", 1)
				return []*orders.Record{r}
			}(),
			conflict: true,
		},
		{
			name:     "id changed for key",
			incoming: []*orders.Record{stored(5, "100", "A", "11.00", 2)},
		},
		{
			name:     "id changed without content change",
			incoming: []*orders.Record{stored(7, "100", "A", "10.00", 2)},
		},
		{
			name:      "reused id below high water",
			incoming:  []*orders.Record{current[0].Clone(), storetest.Record(3, "200", "A", "1.00")},
			highWater: 4,
		},
		{
			name:     "missing product code",
			incoming: []*orders.Record{storetest.Record(2, "200", "", "1.00")},
		},
		{
			name: "duplicate key",
			incoming: []*orders.Record{
				current[0].Clone(),
				storetest.Record(2, "100", "A", "10.00"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.NewPlan(current, tt.incoming, tt.highWater)
			require.Error(t, err)
			assert.Equal(t, tt.conflict, errors.IsConflict(err))
			if !tt.conflict {
				assert.True(t, errors.IsValidationError(err))
			}
		})
	}
}

func TestNewPlanUnchanged(t *testing.T) {
	current := []*orders.Record{stored(1, "100", "A", "10.00", 4)}
	plan, err := store.NewPlan(current, []*orders.Record{current[0].Clone(), nil}, 9)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 1, plan.Unchanged)
	assert.Equal(t, int64(9), plan.HighWater)
}

func TestApplyWorkflow(t *testing.T) {
	r := stored(1, "100", "A", "10.00", 3)

	next, err := store.ApplyWorkflow(r, 3, func(w *orders.Workflow) error {
		w.LabelDownloaded = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.Version)
	assert.True(t, next.LabelDownloaded)
	assert.False(t, r.LabelDownloaded)

	_, err = store.ApplyWorkflow(r, 2, func(*orders.Workflow) error { return nil })
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(3), conflict.Actual)
	assert.Equal(t, int64(2), conflict.Expected)
}

func TestSnapshotMaxID(t *testing.T) {
	var nilSnap *store.Snapshot
	assert.Zero(t, nilSnap.MaxID())

	s := &store.Snapshot{
		Records:   []*orders.Record{stored(8, "1", "A", "1.00", 1), nil},
		HighWater: 5,
	}
	assert.Equal(t, int64(8), s.MaxID())
}
