package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/agentstation/ordersync/internal/cmd/output"
	"github.com/agentstation/ordersync/internal/server/response"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
)

// ClaimRequest is the body of POST /records/{id}/claim.
type ClaimRequest struct {
	Vendor string `json:"vendor"`
}

// HandleListRecords handles GET /api/v1/records?status=claimed,unclaimed.
func (h *Handlers) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	var statuses []orders.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := orders.ParseStatus(part)
			if err != nil {
				response.ErrorFromType(w, err)
				return
			}
			statuses = append(statuses, st)
		}
	}

	rows, err := h.backend.List(r.Context(), statuses...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"records": output.RecordViews(rows),
		"count":   len(rows),
	})
}

// HandleGetRecord handles GET /api/v1/records/{id}.
func (h *Handlers) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	rec, err := h.backend.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, output.NewRecordView(rec))
}

// HandleClaim handles POST /api/v1/records/{id}/claim.
func (h *Handlers) HandleClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	var req ClaimRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid request body", err.Error())
			return
		}
	}
	if req.Vendor == "" {
		req.Vendor = r.URL.Query().Get("vendor")
	}

	rec, err := h.backend.Claim(r.Context(), id, req.Vendor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, output.NewRecordView(rec))
}

// HandleRelease handles POST /api/v1/records/{id}/release.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	rec, err := h.backend.Release(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, output.NewRecordView(rec))
}

// HandleHandover handles POST /api/v1/records/{id}/handover.
func (h *Handlers) HandleHandover(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	rec, err := h.backend.Handover(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, output.NewRecordView(rec))
}

// HandleArchive handles GET /api/v1/archive?limit=100.
func (h *Handlers) HandleArchive(w http.ResponseWriter, r *http.Request) {
	limit := constants.ArchiveRowsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.ErrorFromType(w, errors.NewValidationError("limit", raw, "must be a positive integer"))
			return
		}
		limit = min(n, constants.ArchiveRowsLimit)
	}

	rows, err := h.backend.Archived(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"records": output.ArchivedViews(rows),
		"count":   len(rows),
	})
}

// fail logs err with the request logger and writes the mapped response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn().Err(err).Msg("Request failed")
	response.ErrorFromType(w, err)
}
