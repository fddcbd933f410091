package ordersync

import (
	"sync"

	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/orders"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// Compile-time interface check to ensure proper implementation.
var _ Hooks = (*client)(nil)

// Hook function types for cycle and record events
type (
	// CycleHook is called after every cycle. res is nil when the cycle
	// failed before the merge. Hooks run on the cycle's goroutine and must
	// not register hooks or start a cycle themselves.
	CycleHook func(res *pkgsync.Result, err error)

	// RecordAddedHook is called for every row written for a new key
	RecordAddedHook func(record *orders.Record)

	// RecordUpdatedHook is called for every written row whose content changed
	RecordUpdatedHook func(update differ.RecordUpdate)

	// RecordRemovedHook is called for every row dropped from the active set
	RecordRemovedHook func(record *orders.Record)
)

// Hooks registers event callbacks.
type Hooks interface {
	OnCycle(fn CycleHook)
	OnRecordAdded(fn RecordAddedHook)
	OnRecordUpdated(fn RecordUpdatedHook)
	OnRecordRemoved(fn RecordRemovedHook)
}

// hooks manages event callbacks
type hooks struct {
	mu              sync.RWMutex
	onCycle         []CycleHook
	onRecordAdded   []RecordAddedHook
	onRecordUpdated []RecordUpdatedHook
	onRecordRemoved []RecordRemovedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnCycle registers a callback run after every cycle
func (c *client) OnCycle(fn CycleHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onCycle = append(c.hooks.onCycle, fn)
}

// OnRecordAdded registers a callback for rows written for new keys
func (c *client) OnRecordAdded(fn RecordAddedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onRecordAdded = append(c.hooks.onRecordAdded, fn)
}

// OnRecordUpdated registers a callback for rows whose content changed
func (c *client) OnRecordUpdated(fn RecordUpdatedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onRecordUpdated = append(c.hooks.onRecordUpdated, fn)
}

// OnRecordRemoved registers a callback for rows dropped from the active set
func (c *client) OnRecordRemoved(fn RecordRemovedHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onRecordRemoved = append(c.hooks.onRecordRemoved, fn)
}

// triggerChangeset fires the record hooks for a persisted changeset
func (h *hooks) triggerChangeset(cs *differ.Changeset) {
	if cs.IsEmpty() {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, r := range cs.Added {
		for _, hook := range h.onRecordAdded {
			hook(r)
		}
	}
	for _, u := range cs.Updated {
		for _, hook := range h.onRecordUpdated {
			hook(u)
		}
	}
	for _, r := range cs.Removed {
		for _, hook := range h.onRecordRemoved {
			hook(r)
		}
	}
}

// triggerCycle fires the cycle hooks
func (h *hooks) triggerCycle(res *pkgsync.Result, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onCycle {
		hook(res, err)
	}
}
