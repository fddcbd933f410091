package application

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/internal/metrics"
	"github.com/agentstation/ordersync/internal/server"
	"github.com/agentstation/ordersync/pkg/errors"
)

var _ Application = (*Mock)(nil)

// Mock is an Application for command tests. Unset funcs return zero values.
type Mock struct {
	ClientFunc      func() (ordersync.Client, error)
	MetricsRegistry *metrics.Registry
	Server          server.Config
	Interval        time.Duration
	Log             *zerolog.Logger
	Format          string
	VersionString   string
}

// Client implements Application.
func (m *Mock) Client() (ordersync.Client, error) {
	if m.ClientFunc == nil {
		return nil, errors.NewConfigError("mock", "no client configured", nil)
	}
	return m.ClientFunc()
}

// Metrics implements Application.
func (m *Mock) Metrics() *metrics.Registry { return m.MetricsRegistry }

// ServerConfig implements Application.
func (m *Mock) ServerConfig() server.Config { return m.Server }

// SyncInterval implements Application.
func (m *Mock) SyncInterval() time.Duration { return m.Interval }

// Logger implements Application.
func (m *Mock) Logger() *zerolog.Logger {
	if m.Log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return m.Log
}

// OutputFormat implements Application.
func (m *Mock) OutputFormat() string { return m.Format }

// Version implements Application.
func (m *Mock) Version() string { return m.VersionString }

// Commit implements Application.
func (m *Mock) Commit() string { return "test" }

// Date implements Application.
func (m *Mock) Date() string { return "test" }

// BuiltBy implements Application.
func (m *Mock) BuiltBy() string { return "test" }
