package handlers

import (
	"net/http"

	"github.com/agentstation/ordersync/internal/server/response"
	"github.com/agentstation/ordersync/pkg/logging"
)

// HandleHealth handles GET /health (liveness probe).
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "ordersync",
	})
}

// HandleReady handles GET /api/v1/ready. The service is ready once the
// record store answers.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	rows, err := h.backend.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		response.ServiceUnavailable(w, "Record store not available")
		return
	}

	data := map[string]any{
		"status":            "ready",
		"records":           len(rows),
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	}
	if last, ok := h.cycles.Last(); ok {
		data["last_cycle"] = last
	}
	response.OK(w, data)
}
