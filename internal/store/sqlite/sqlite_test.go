package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store/storetest"
)

func openTemp(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ordersync.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, storetest.Factory{
		Open: func(t *testing.T) storetest.Backend {
			return openTemp(t)
		},
		Reopen: func(t *testing.T, b storetest.Backend) storetest.Backend {
			s, err := Open(b.(*Store).Path())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordersync.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestPragmas(t *testing.T) {
	s := openTemp(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpenValidation(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "x.db"), WithPayloadsRetained(0))
	assert.True(t, errors.IsValidationError(err))

	_, err = Open(filepath.Join(t.TempDir(), "x.db"), WithArchiveLimit(-1))
	assert.True(t, errors.IsValidationError(err))
}

func TestPayloadRetention(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, WithPayloadsRetained(2))

	_, err := s.LatestPayload(ctx)
	assert.True(t, errors.IsNotFound(err))

	for _, body := range []string{`[1]`, `[2]`, `[3]`} {
		require.NoError(t, s.PutPayload(ctx, []byte(body)))
	}

	got, err := s.LatestPayload(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[3]`, string(got))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM payloads`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestReplaceIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.Replace(ctx, []*orders.Record{
		storetest.Record(1, "100", "A", "10.00"),
		storetest.Record(2, "100", "B", "20.00"),
	})
	require.NoError(t, err)
	snap, err := s.Load(ctx)
	require.NoError(t, err)

	// A concurrent claim on row 2 makes the second update stale.
	_, err = s.UpdateWorkflow(ctx, 2, 1, func(w *orders.Workflow) error {
		w.LabelDownloaded = true
		return nil
	})
	require.NoError(t, err)

	rows := []*orders.Record{snap.Records[0].Clone(), snap.Records[1].Clone()}
	rows[0].ProductName = "renamed"
	rows[1].ProductName = "renamed too"
	_, err = s.Replace(ctx, rows)
	require.True(t, errors.IsConflict(err))

	first, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Item A", first.ProductName, "rolled back with the failing row")
	assert.Equal(t, int64(1), first.Version)
}

func TestArchiveTrimmed(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, WithArchiveLimit(1))

	_, err := s.Replace(ctx, []*orders.Record{
		storetest.Record(1, "100", "A", "10.00"),
		storetest.Record(2, "100", "B", "20.00"),
	})
	require.NoError(t, err)
	res, err := s.Replace(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Archived)

	archived, err := s.Archived(ctx, 0)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, int64(2), archived[0].Record.ID)
	assert.Equal(t, "100/B", archived[0].Record.Key().String())
}
