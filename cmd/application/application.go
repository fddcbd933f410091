// Package application provides the application interface for ordersync
// commands.
//
// Commands accept this interface rather than the concrete App type so they
// can be tested against Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (ordersync.Client, error) {
//	        return testClient, nil
//	    },
//	}
//	cmd := reconcile.NewCommand(mock)
package application

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/internal/metrics"
	"github.com/agentstation/ordersync/internal/server"
)

// Application provides what commands need from the application.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Client returns the ordersync client, building it on first use.
	Client() (ordersync.Client, error)

	// Metrics returns the registry the client reports cycles to.
	Metrics() *metrics.Registry

	// ServerConfig returns the ops server settings.
	ServerConfig() server.Config

	// SyncInterval is the period between cycles in watch mode.
	SyncInterval() time.Duration

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
