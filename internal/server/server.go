// Package server provides the ordersync ops HTTP server: record queries,
// the claim workflow over HTTP, cycle status, Prometheus metrics and a live
// stream of cycle events.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/agentstation/utc"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/ordersync"
	"github.com/agentstation/ordersync/internal/metrics"
	"github.com/agentstation/ordersync/internal/server/handlers"
	"github.com/agentstation/ordersync/internal/server/sse"
	ws "github.com/agentstation/ordersync/internal/server/websocket"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/orders"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// Event types pushed to stream subscribers.
const (
	EventCycleCompleted = "cycle.completed"
	EventCycleFailed    = "cycle.failed"
	EventRecordAdded    = "record.added"
	EventRecordUpdated  = "record.updated"
	EventRecordRemoved  = "record.removed"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	client         ordersync.Client
	metrics        *metrics.Registry
	cycles         *handlers.Tracker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
}

// New creates a server for client. registry may be nil, in which case
// /metrics is not served.
func New(client ordersync.Client, registry *metrics.Registry, cfg Config, logger *zerolog.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.NewConfigError("server", "client is required", nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		client:         client,
		metrics:        registry,
		cycles:         handlers.NewTracker(),
		wsHub:          ws.NewHub(logger),
		sseBroadcaster: sse.NewBroadcaster(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	s.connectHooks()
	return s, nil
}

// connectHooks forwards client events to the stream subscribers.
func (s *Server) connectHooks() {
	s.client.OnCycle(func(res *pkgsync.Result, err error) {
		st := s.cycles.Observe(res, err)
		eventType := EventCycleCompleted
		if err != nil {
			eventType = EventCycleFailed
		}
		s.broadcast(eventType, st.CycleID, st)
	})

	s.client.OnRecordAdded(func(r *orders.Record) {
		s.broadcast(EventRecordAdded, "", map[string]any{"id": r.ID, "key": r.Key()})
	})

	s.client.OnRecordUpdated(func(u differ.RecordUpdate) {
		fields := make([]string, 0, len(u.Changes))
		for _, c := range u.Changes {
			fields = append(fields, c.Path)
		}
		s.broadcast(EventRecordUpdated, "", map[string]any{"id": u.ID, "key": u.Key, "fields": fields})
	})

	s.client.OnRecordRemoved(func(r *orders.Record) {
		s.broadcast(EventRecordRemoved, "", map[string]any{"id": r.ID, "key": r.Key(), "status": r.Status})
	})
}

// broadcast fans an event out to both stream transports.
func (s *Server) broadcast(eventType, cycleID string, data any) {
	s.wsHub.Broadcast(ws.Message{
		Type:      eventType,
		CycleID:   cycleID,
		Timestamp: utc.Now(),
		Data:      data,
	})
	s.sseBroadcaster.Broadcast(sse.Event{
		Event: eventType,
		ID:    cycleID,
		Data:  data,
	})
	s.logger.Debug().Str("event_type", eventType).Str("cycle_id", cycleID).Msg("Event broadcast")
}

// Start starts background services (WebSocket hub, SSE broadcaster).
func (s *Server) Start() {
	go s.wsHub.Run(s.ctx)
	go s.sseBroadcaster.Run(s.ctx)
	s.logger.Debug().Msg("Background services started")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops background services. Open streams are closed.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx
// is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return errors.WrapResource("listen", "address", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start()

	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		_ = s.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("Shutdown signal received via context")

		// The parent context is already canceled
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		// Streams end first so Shutdown does not wait on them
		_ = s.Shutdown(shutdownCtx)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

// Cycles returns the cycle tracker.
func (s *Server) Cycles() *handlers.Tracker {
	return s.cycles
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
