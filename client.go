// Package ordersync reconciles open orders from a carrier API with a durable
// record set that also carries vendor claim state.
//
// A cycle fetches the open orders, splits every order total across its line
// items, classifies the payment, merges the result with the stored rows while
// preserving claim state, writes only when something changed and finally
// backfills display fields on a best-effort basis.
//
// Example usage:
//
//	fetcher, err := carrier.New(carrier.Config{BaseURL: "https://carrier.example", APIKey: key})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st, err := files.New("./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := ordersync.New(fetcher, st,
//	    ordersync.WithEnhancers(enhancer.NewCustomerNameEnhancer(st)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.AutoUpdatesOff()
//
//	client.OnCycle(func(res *sync.Result, err error) {
//	    if err == nil {
//	        log.Println(res.Summary())
//	    }
//	})
//
//	result, err := client.Sync(ctx, sync.WithDryRun(true))
package ordersync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/ordersync/pkg/enhancer"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

// Fetcher returns the carrier's open orders.
type Fetcher interface {
	FetchOpenOrders(ctx context.Context) ([]orders.UpstreamOrder, error)
}

// Client runs reconciliation cycles against one store.
type Client interface {

	// Syncer runs a single cycle on demand
	Syncer

	// Records exposes the stored rows and the claim workflow primitives
	Records

	// AutoUpdater provides access to periodic cycle controls
	AutoUpdater

	// Hooks provides access to event callback registration
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	options *options

	fetcher  Fetcher
	store    store.Store
	pipeline *enhancer.Pipeline

	// cycleMu serializes cycles
	cycleMu sync.Mutex

	// auto update state
	mu           sync.Mutex
	updateTicker *time.Ticker       // update ticker to trigger auto-updates
	stopCh       chan struct{}      // stop channel to stop auto-updates
	doneCh       chan struct{}      // closed when the update goroutine exits
	updateCancel context.CancelFunc // Cancel function for update goroutine

	// set while the cycle hooks of a scheduled cycle run
	inScheduledHooks atomic.Bool

	hooks *hooks // Event hooks for cycles and record changes
}

// New creates a Client that fetches with fetcher and persists to st.
func New(fetcher Fetcher, st store.Store, opts ...Option) (Client, error) {
	if fetcher == nil {
		return nil, errors.NewConfigError("ordersync", "fetcher is required", nil)
	}
	if st == nil {
		return nil, errors.NewConfigError("ordersync", "store is required", nil)
	}

	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options:  o,
		fetcher:  fetcher,
		store:    st,
		pipeline: enhancer.NewPipeline(o.enhancers...),
		hooks:    newHooks(),
	}

	if o.autoUpdatesEnabled {
		if err := c.AutoUpdatesOn(); err != nil {
			return nil, errors.WrapResource("start", "auto-updates", "", err)
		}
	}
	return c, nil
}
