package ordersync

import (
	"context"
	"time"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoUpdater = (*client)(nil)

// AutoUpdater provides controls for periodic cycles.
type AutoUpdater interface {
	// AutoUpdatesOn begins periodic cycles
	AutoUpdatesOn() error

	// AutoUpdatesOff stops periodic cycles and waits for the running one
	AutoUpdatesOff() error
}

// AutoUpdatesOn begins periodic cycles at the configured interval.
func (c *client) AutoUpdatesOn() error {
	if c.options.autoUpdateInterval <= 0 {
		return &errors.ValidationError{
			Field:   "autoUpdateInterval",
			Value:   c.options.autoUpdateInterval,
			Message: "update interval must be positive",
		}
	}

	// Stop any existing auto-updates to prevent resource leaks
	if err := c.AutoUpdatesOff(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := time.NewTicker(c.options.autoUpdateInterval)
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	c.updateTicker = ticker
	c.stopCh = stopCh
	c.doneCh = doneCh
	c.updateCancel = cancel

	go func(parentCtx context.Context) {
		defer close(doneCh)
		for {
			select {
			case <-ticker.C:
				if !c.runScheduled(parentCtx) {
					return
				}
			case <-parentCtx.Done():
				return
			case <-stopCh:
				return
			}
		}
	}(ctx)

	return nil
}

// runScheduled runs one periodic cycle. It returns false when the loop
// should exit.
func (c *client) runScheduled(ctx context.Context) bool {
	opts := []pkgsync.Option{}
	if c.options.cycleTimeout > 0 {
		opts = append(opts, pkgsync.WithTimeout(c.options.cycleTimeout))
	}
	_, err := c.Sync(context.WithValue(ctx, scheduledKey{}, true), opts...)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	// Sync already logged the cause, the next tick retries
	logging.Warn().Err(err).Msg("Scheduled cycle failed")
	return true
}

// scheduledKey marks the context of a periodic cycle.
type scheduledKey struct{}

// fireCycleHooks runs the cycle hooks, flagging hooks of periodic cycles so
// AutoUpdatesOff called from one of them does not wait on its own loop.
func (c *client) fireCycleHooks(ctx context.Context, res *pkgsync.Result, err error) {
	if ctx.Value(scheduledKey{}) != nil {
		c.inScheduledHooks.Store(true)
		defer c.inScheduledHooks.Store(false)
	}
	c.hooks.triggerCycle(res, err)
}

// AutoUpdatesOff stops periodic cycles. It is safe to call repeatedly.
// Called from a cycle hook of a periodic cycle it returns without waiting,
// and the loop exits once the hooks return.
func (c *client) AutoUpdatesOff() error {
	c.mu.Lock()
	if c.updateTicker != nil {
		c.updateTicker.Stop()
		c.updateTicker = nil
	}
	if c.updateCancel != nil {
		c.updateCancel()
		c.updateCancel = nil
	}
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	done := c.doneCh
	c.doneCh = nil
	c.mu.Unlock()

	if done != nil && !c.inScheduledHooks.Load() {
		<-done
	}
	return nil
}
