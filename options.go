package ordersync

import (
	"time"

	"github.com/agentstation/ordersync/pkg/allocate"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/enhancer"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/payment"
	"github.com/agentstation/ordersync/pkg/reconciler"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// options holds the client configuration.
type options struct {
	allocator  *allocate.Calculator
	classifier *payment.Classifier
	enhancers  []enhancer.Enhancer

	syncDefaults []pkgsync.Option

	autoUpdatesEnabled bool
	autoUpdateInterval time.Duration
	cycleTimeout       time.Duration
}

func defaults() *options {
	return &options{
		autoUpdatesEnabled: false,
		autoUpdateInterval: constants.DefaultUpdateInterval,
		cycleTimeout:       constants.DefaultSyncTimeout,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// reconcilerOptions returns the merge options for a cycle seeded with the
// store's high-water mark.
func (o *options) reconcilerOptions(highWater int64) []reconciler.Option {
	opts := []reconciler.Option{reconciler.WithHighWater(highWater)}
	if o.allocator != nil {
		opts = append(opts, reconciler.WithAllocator(o.allocator))
	}
	if o.classifier != nil {
		opts = append(opts, reconciler.WithClassifier(o.classifier))
	}
	return opts
}

// Option is a function that configures a Client
type Option func(*options) error

// WithAllocator configures the ratio split calculator
func WithAllocator(a *allocate.Calculator) Option {
	return func(o *options) error {
		o.allocator = a
		return nil
	}
}

// WithClassifier configures the payment classifier
func WithClassifier(c *payment.Classifier) Option {
	return func(o *options) error {
		o.classifier = c
		return nil
	}
}

// WithEnhancers adds enhancers to the post-write enhancement pass
func WithEnhancers(enhancers ...enhancer.Enhancer) Option {
	return func(o *options) error {
		for _, e := range enhancers {
			if e != nil {
				o.enhancers = append(o.enhancers, e)
			}
		}
		return nil
	}
}

// WithSyncDefaults sets options applied to every cycle before the ones
// passed to Sync
func WithSyncDefaults(opts ...pkgsync.Option) Option {
	return func(o *options) error {
		o.syncDefaults = append(o.syncDefaults, opts...)
		return nil
	}
}

// WithAutoUpdates configures whether periodic cycles start with the client
func WithAutoUpdates(enabled bool) Option {
	return func(o *options) error {
		o.autoUpdatesEnabled = enabled
		return nil
	}
}

// WithAutoUpdateInterval configures how often periodic cycles run
func WithAutoUpdateInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return errors.NewValidationError("autoUpdateInterval", interval, "update interval must be positive")
		}
		o.autoUpdateInterval = interval
		return nil
	}
}

// WithCycleTimeout bounds each periodic cycle
func WithCycleTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout < 0 {
			return errors.NewValidationError("cycleTimeout", timeout, "timeout must be non-negative")
		}
		o.cycleTimeout = timeout
		return nil
	}
}
