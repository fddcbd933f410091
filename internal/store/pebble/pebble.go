// Package pebble keeps raw upstream payloads in a Pebble key-value store,
// retaining a bounded number of snapshots for inspection.
package pebble

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/store"
)

var (
	payloadPrefix = []byte("payload/")
	payloadEnd    = []byte("payload0") // '/' + 1
)

// Cache is a store.PayloadCache on Pebble.
type Cache struct {
	mu       sync.Mutex
	db       *pebble.DB
	retained int
	seq      uint64
}

var _ store.PayloadCache = (*Cache)(nil)

// Option is a function that configures a Cache
type Option func(*Cache) error

// WithRetained sets how many payload snapshots are kept.
func WithRetained(n int) Option {
	return func(c *Cache) error {
		if n < 1 {
			return errors.NewValidationError("retained", n, "must be at least 1")
		}
		c.retained = n
		return nil
	}
}

// Open opens (creating if needed) a payload cache in dir.
func Open(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.NewConfigError("pebble cache", "directory is required", nil)
	}
	c := &Cache{retained: constants.PayloadSnapshotsRetained}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapResource("create", "pebble cache", dir, err)
		}
	}

	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, errors.WrapResource("open", "pebble", dir, err)
	}
	c.db = db

	last, err := c.lastSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.seq = last
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// PutPayload implements store.PayloadCache. The write is synced so the
// payload survives a crash right after the fetch.
func (c *Cache) PutPayload(_ context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	b := c.db.NewBatch()
	defer b.Close()

	if err := b.Set(payloadKey(c.seq), body, nil); err != nil {
		return errors.WrapResource("write", "payload", "", err)
	}
	if c.seq > uint64(c.retained) {
		// Everything older than the retained window.
		if err := b.DeleteRange(payloadPrefix, payloadKey(c.seq-uint64(c.retained)+1), nil); err != nil {
			return errors.WrapResource("trim", "payloads", "", err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.WrapResource("commit", "payload", "", err)
	}
	return nil
}

// LatestPayload implements store.PayloadCache.
func (c *Cache) LatestPayload(_ context.Context) ([]byte, error) {
	it, err := c.db.NewIter(&pebble.IterOptions{LowerBound: payloadPrefix, UpperBound: payloadEnd})
	if err != nil {
		return nil, errors.WrapResource("iterate", "payloads", "", err)
	}
	defer it.Close()

	if !it.Last() {
		return nil, errors.NewNotFoundError("payload", "latest")
	}
	return append([]byte(nil), it.Value()...), nil
}

// Snapshots returns how many payloads are currently retained.
func (c *Cache) Snapshots() (int, error) {
	it, err := c.db.NewIter(&pebble.IterOptions{LowerBound: payloadPrefix, UpperBound: payloadEnd})
	if err != nil {
		return 0, errors.WrapResource("iterate", "payloads", "", err)
	}
	defer it.Close()

	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

func (c *Cache) lastSeq() (uint64, error) {
	it, err := c.db.NewIter(&pebble.IterOptions{LowerBound: payloadPrefix, UpperBound: payloadEnd})
	if err != nil {
		return 0, errors.WrapResource("iterate", "payloads", "", err)
	}
	defer it.Close()

	if !it.Last() {
		return 0, nil
	}
	key := it.Key()
	if len(key) != len(payloadPrefix)+8 {
		return 0, errors.NewValidationError("key", string(key), "malformed payload key")
	}
	return binary.BigEndian.Uint64(key[len(payloadPrefix):]), nil
}

// payloadKey is the prefix followed by a big-endian sequence so keys sort
// in write order.
func payloadKey(seq uint64) []byte {
	k := make([]byte, len(payloadPrefix)+8)
	copy(k, payloadPrefix)
	binary.BigEndian.PutUint64(k[len(payloadPrefix):], seq)
	return k
}
