package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/internal/carrier"
	"github.com/agentstation/ordersync/internal/matcher"
	"github.com/agentstation/ordersync/internal/publish"
	"github.com/agentstation/ordersync/internal/store/files"
	"github.com/agentstation/ordersync/internal/store/pebble"
	"github.com/agentstation/ordersync/internal/store/sqlite"
	"github.com/agentstation/ordersync/internal/transport"
	"github.com/agentstation/ordersync/pkg/allocate"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/enhancer"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/payment"
	"github.com/agentstation/ordersync/pkg/products"
	"github.com/agentstation/ordersync/pkg/store"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// buildClient assembles the client from the configuration. The returned
// closers are owned by the caller even when err is non-nil.
func (a *App) buildClient() (ordersync.Client, []namedCloser, error) {
	cfg := a.config
	var closers []namedCloser

	// Step 1: Record store
	st, err := openStore(cfg)
	if err != nil {
		return nil, closers, err
	}
	closers = append(closers, namedCloser{"store", st})

	// Step 2: Raw payload cache
	cache, cacheCloser, err := openPayloadCache(cfg, st)
	if err != nil {
		return nil, closers, err
	}
	if cacheCloser != nil {
		closers = append(closers, namedCloser{"payload cache", cacheCloser})
	}

	// Step 3: Carrier client
	var carrierOpts []carrier.Option
	if cache != nil {
		carrierOpts = append(carrierOpts, carrier.WithPayloadCache(cache))
	}
	fetcher, err := carrier.New(carrierConfig(cfg), carrierOpts...)
	if err != nil {
		return nil, closers, err
	}

	// Step 4: Financial rules
	classifier, err := payment.New(
		payment.WithCollectTag(cfg.CollectTag),
		payment.WithAdvancePercent(cfg.AdvancePercent),
	)
	if err != nil {
		return nil, closers, err
	}
	var allocOpts []allocate.Option
	if cfg.RemainderToLargest {
		allocOpts = append(allocOpts, allocate.WithRemainderToLargest())
	}

	// Step 5: Enhancers
	enhancers, err := buildEnhancers(cfg, cache)
	if err != nil {
		return nil, closers, err
	}

	// Step 6: Client
	client, err := ordersync.New(fetcher, st,
		ordersync.WithAllocator(allocate.New(allocOpts...)),
		ordersync.WithClassifier(classifier),
		ordersync.WithEnhancers(enhancers...),
		ordersync.WithAutoUpdateInterval(cfg.SyncInterval),
		ordersync.WithCycleTimeout(cfg.CycleTimeout),
		ordersync.WithSyncDefaults(pkgsync.WithTimeout(cfg.CycleTimeout)),
	)
	if err != nil {
		return nil, closers, err
	}

	// Step 7: Observers
	client.OnCycle(a.metrics.ObserveCycle)
	if cfg.KafkaBrokers != "" {
		pub, err := publish.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, namedCloser{"publisher", pub})
		client.OnCycle(publishHook(pub, a.logger))
	}

	a.logger.Debug().
		Str("store", cfg.StoreBackend).
		Str("store_path", cfg.StorePath).
		Str("payload_cache", cfg.PayloadCache).
		Int("enhancers", len(enhancers)).
		Bool("publish", cfg.KafkaBrokers != "").
		Msg("Client assembled")
	return client, closers, nil
}

// openStore opens the configured record store backend.
func openStore(cfg *Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath), constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("mkdir", filepath.Dir(cfg.StorePath), err)
		}
		return sqlite.Open(cfg.StorePath)
	case BackendFiles:
		return files.New(cfg.StorePath)
	}
	return nil, errors.NewConfigError("store.backend", "unknown backend "+cfg.StoreBackend, nil)
}

// openPayloadCache returns the cache raw carrier responses go to. The
// closer is non-nil only when the cache is separate from the store.
func openPayloadCache(cfg *Config, st store.Store) (store.PayloadCache, interface{ Close() error }, error) {
	switch cfg.PayloadCache {
	case PayloadCacheNone:
		return nil, nil, nil
	case PayloadCachePebble:
		c, err := pebble.Open(cfg.PebbleDir)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case PayloadCacheStore:
		c, ok := st.(store.PayloadCache)
		if !ok {
			return nil, nil, errors.NewConfigError("payload.cache", "store backend "+cfg.StoreBackend+" cannot cache payloads", nil)
		}
		return c, nil, nil
	}
	return nil, nil, errors.NewConfigError("payload.cache", "unknown cache "+cfg.PayloadCache, nil)
}

// carrierConfig maps the configuration onto the carrier client.
func carrierConfig(cfg *Config) carrier.Config {
	return carrier.Config{
		BaseURL:     cfg.CarrierURL,
		Path:        cfg.CarrierPath,
		StatusParam: cfg.CarrierStatusParam,
		StatusValue: cfg.CarrierStatusValue,
		APIKey:      cfg.CarrierAPIKey,
		Timeout:     cfg.CarrierTimeout,
		Auth: &transport.SchemeAuth{
			Header:     cfg.CarrierAuthHeader,
			Scheme:     transport.ParseScheme(cfg.CarrierAuthScheme),
			QueryParam: cfg.CarrierAuthQuery,
		},
	}
}

// buildEnhancers returns the customer name enhancer and the product image
// enhancer backed by the product catalog. Without a payload cache every
// customer name gets the placeholder, and without a catalog every image
// does. With a cache, placeholder names are retried each cycle.
func buildEnhancers(cfg *Config, cache store.PayloadCache) ([]enhancer.Enhancer, error) {
	var out []enhancer.Enhancer

	var opts []enhancer.CustomerOption
	if cfg.CustomerTitleCase {
		opts = append(opts, enhancer.WithTitleCase())
	}
	var source enhancer.PayloadSource
	if cache != nil {
		source = cache
		opts = append(opts, enhancer.WithCustomerRetry())
	}
	out = append(out, enhancer.NewCustomerNameEnhancer(source, opts...))

	catalog := products.Empty()
	if cfg.ProductCatalog != "" {
		c, err := products.Load(cfg.ProductCatalog)
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	out = append(out, enhancer.NewProductImageEnhancer(
		matcher.New(catalog.Images),
		enhancer.WithImagePlaceholder(catalog.Placeholder),
	))
	return out, nil
}

// publishHook publishes every cycle that wrote rows. Publish failures are
// logged and never fail the cycle.
func publishHook(pub *publish.Publisher, logger *zerolog.Logger) ordersync.CycleHook {
	return func(res *pkgsync.Result, err error) {
		if err != nil || res == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultFetchTimeout)
		defer cancel()
		if err := pub.PublishCycle(ctx, res); err != nil {
			logger.Warn().Err(err).
				Str("cycle_id", res.CycleID).
				Str("topic", pub.Topic()).
				Msg("Failed to publish cycle event")
		}
	}
}
