// Package handlers provides the HTTP request handlers for the ordersync ops
// API.
package handlers

import (
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/internal/server/sse"
	ws "github.com/agentstation/ordersync/internal/server/websocket"
	"github.com/agentstation/ordersync/pkg/errors"
)

// Backend is the part of the ordersync client the handlers use.
type Backend interface {
	ordersync.Syncer
	ordersync.Records
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	backend        Backend
	cycles         *Tracker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
}

// New creates a new Handlers instance.
func New(
	backend Backend,
	cycles *Tracker,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		backend:        backend,
		cycles:         cycles,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		logger:         logger,
	}
}

// parseID parses a surrogate id path value.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.NewValidationError("id", raw, "must be a positive integer")
	}
	return id, nil
}

// parseBool parses an optional boolean query parameter.
func parseBool(field, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.NewValidationError(field, raw, "must be a boolean")
	}
	return v, nil
}
