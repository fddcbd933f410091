// Package memory provides an in-memory record store, mainly for tests and
// dry runs.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/agentstation/utc"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

// Store is a mutex-guarded in-memory implementation of every store
// interface.
type Store struct {
	mu        sync.RWMutex
	rows      map[int64]*orders.Record
	highWater int64
	archive   []store.ArchivedRecord
	payload   []byte
	readOnly  bool
	replaces  int
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.PayloadCache    = (*Store)(nil)
	_ store.WorkflowUpdater = (*Store)(nil)
	_ store.Archiver        = (*Store)(nil)
)

// Option is a function that configures a memory Store
type Option func(*Store) error

// WithRecords preloads rows at their current versions.
func WithRecords(rows ...*orders.Record) Option {
	return func(s *Store) error {
		for _, r := range rows {
			if r == nil {
				continue
			}
			if _, ok := s.rows[r.ID]; ok {
				return errors.NewValidationError("id", r.ID, "duplicate surrogate id")
			}
			s.rows[r.ID] = r.Clone()
			if r.ID > s.highWater {
				s.highWater = r.ID
			}
		}
		return nil
	}
}

// WithHighWater sets the initial high-water mark.
func WithHighWater(id int64) Option {
	return func(s *Store) error {
		if id < 0 {
			return errors.NewValidationError("high_water", id, "must not be negative")
		}
		if id > s.highWater {
			s.highWater = id
		}
		return nil
	}
}

// WithReadOnly rejects every write with errors.ErrReadOnly.
func WithReadOnly() Option {
	return func(s *Store) error {
		s.readOnly = true
		return nil
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) (*Store, error) {
	s := &Store{rows: make(map[int64]*orders.Record)}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapResource("create", "memory store", "", err)
		}
	}
	return s, nil
}

// Load implements store.Store.
func (s *Store) Load(_ context.Context) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*orders.Record, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r.Clone())
	}
	return &store.Snapshot{Records: store.Sorted(rows), HighWater: s.highWater}, nil
}

// Replace implements store.Store.
func (s *Store) Replace(_ context.Context, rows []*orders.Record) (*store.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return nil, errors.ErrReadOnly
	}

	current := make([]*orders.Record, 0, len(s.rows))
	for _, r := range s.rows {
		current = append(current, r)
	}
	plan, err := store.NewPlan(current, rows, s.highWater)
	if err != nil {
		return nil, err
	}

	now := utc.Now()
	for _, r := range plan.Delete {
		delete(s.rows, r.ID)
		s.archive = append(s.archive, store.ArchivedRecord{Record: r.Clone(), ArchivedAt: now})
	}
	for _, r := range plan.Update {
		s.rows[r.ID] = r
	}
	for _, r := range plan.Insert {
		s.rows[r.ID] = r
	}
	s.highWater = plan.HighWater
	if !plan.Empty() {
		s.replaces++
	}
	return plan.Result(len(plan.Delete)), nil
}

// Replaces returns how many Replace calls changed at least one row.
func (s *Store) Replaces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replaces
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// PutPayload implements store.PayloadCache.
func (s *Store) PutPayload(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = append([]byte(nil), body...)
	return nil
}

// LatestPayload implements store.PayloadCache.
func (s *Store) LatestPayload(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return nil, errors.NewNotFoundError("payload", "latest")
	}
	return append([]byte(nil), s.payload...), nil
}

// Get implements store.WorkflowUpdater.
func (s *Store) Get(_ context.Context, id int64) (*orders.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, errors.NewNotFoundError("record", formatID(id))
	}
	return r.Clone(), nil
}

// UpdateWorkflow implements store.WorkflowUpdater.
func (s *Store) UpdateWorkflow(_ context.Context, id, expectedVersion int64, fn store.WorkflowFunc) (*orders.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return nil, errors.ErrReadOnly
	}
	r, ok := s.rows[id]
	if !ok {
		return nil, errors.NewNotFoundError("record", formatID(id))
	}
	next, err := store.ApplyWorkflow(r, expectedVersion, fn)
	if err != nil {
		return nil, err
	}
	s.rows[id] = next
	return next.Clone(), nil
}

// Archived implements store.Archiver. Newest rows come first.
func (s *Store) Archived(_ context.Context, limit int) ([]store.ArchivedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.ArchivedRecord, 0, len(s.archive))
	for i := len(s.archive) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		a := s.archive[i]
		out = append(out, store.ArchivedRecord{Record: a.Record.Clone(), ArchivedAt: a.ArchivedAt})
	}
	return out, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
