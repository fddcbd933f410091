// Package app provides the application context and dependency management
// for the ordersync CLI: configuration, logging, and the lazily built
// client with its store, carrier and observers.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/cmd/application"
	"github.com/agentstation/ordersync/internal/metrics"
	"github.com/agentstation/ordersync/internal/server"
	"github.com/agentstation/ordersync/pkg/errors"
)

var _ application.Application = (*App)(nil)

// App represents the ordersync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config  *Config
	logger  *zerolog.Logger
	metrics *metrics.Registry

	// Client (lazy-initialized, singleton) and the resources it owns
	mu      sync.Mutex
	client  ordersync.Client
	closers []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		metrics: metrics.NewRegistry(),
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, errors.WrapResource("load", "config", "", err)
		}
		app.config = config
	}
	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the --format / -o value.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Metrics returns the cycle metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// SyncInterval returns the watch-mode cycle period.
func (a *App) SyncInterval() time.Duration {
	return a.config.SyncInterval
}

// ServerConfig returns the ops server settings.
func (a *App) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	if err := cfg.ParseAddr(a.config.ServerAddr); err != nil {
		a.logger.Warn().Err(err).Str("addr", a.config.ServerAddr).Msg("Invalid server address, using default")
	}
	if a.config.ServerAPIKey != "" {
		cfg.AuthEnabled = true
		cfg.APIKey = a.config.ServerAPIKey
	}
	return cfg
}

// Client returns the ordersync client, building it lazily on first use.
func (a *App) Client() (ordersync.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, closers, err := a.buildClient()
	if err != nil {
		closeAll(a.logger, closers)
		return nil, errors.WrapResource("create", "client", "", err)
	}
	a.client = client
	a.closers = closers
	return client, nil
}

// Shutdown stops auto-updates and releases the store, payload cache and
// publisher.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	client := a.client
	closers := a.closers
	a.client = nil
	a.closers = nil
	a.mu.Unlock()

	if client != nil {
		if err := client.AutoUpdatesOff(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop auto-updates during shutdown")
		}
	}
	closeAll(a.logger, closers)
	return nil
}

// closeAll closes in reverse creation order.
func closeAll(logger *zerolog.Logger, closers []namedCloser) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn().Err(err).Str("resource", closers[i].name).Msg("Close failed")
		}
	}
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClient sets a prebuilt client (useful for testing).
func WithClient(client ordersync.Client) Option {
	return func(a *App) error {
		a.client = client
		return nil
	}
}
