package orders

import (
	"strings"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/utc"
)

// Status is the claim state of a record.
type Status string

// String returns the string representation of a Status.
func (s Status) String() string {
	return string(s)
}

// Claim workflow states.
const (
	StatusUnclaimed        Status = "unclaimed"
	StatusClaimed          Status = "claimed"
	StatusReadyForHandover Status = "ready_for_handover"
)

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusUnclaimed, StatusClaimed, StatusReadyForHandover:
		return st, nil
	}
	return "", errors.NewValidationError("status", s, "must be unclaimed, claimed or ready_for_handover")
}

// Workflow holds the claim and hand-off state owned by the external claim
// workflow. Resyncs carry it over untouched.
type Workflow struct {
	Status          Status    `json:"status"`
	ClaimedBy       string    `json:"claimed_by,omitempty"`
	ClaimedAt       *utc.Time `json:"claimed_at,omitempty"`
	LastClaimedBy   string    `json:"last_claimed_by,omitempty"`
	LastClaimedAt   *utc.Time `json:"last_claimed_at,omitempty"`
	CloneStatus     string    `json:"clone_status,omitempty"`
	ClonedOrderID   string    `json:"cloned_order_id,omitempty"`
	IsClonedRow     bool      `json:"is_cloned_row,omitempty"`
	LabelDownloaded bool      `json:"label_downloaded,omitempty"`
	HandoverAt      *utc.Time `json:"handover_at,omitempty"`
}

// NewWorkflow returns the initial state for a new record.
func NewWorkflow() Workflow {
	return Workflow{Status: StatusUnclaimed}
}

// Clone returns a copy that shares no pointers with w.
func (w Workflow) Clone() Workflow {
	w.ClaimedAt = timePtr(w.ClaimedAt)
	w.LastClaimedAt = timePtr(w.LastClaimedAt)
	w.HandoverAt = timePtr(w.HandoverAt)
	return w
}

// Claim assigns an unclaimed record to vendor.
func (w *Workflow) Claim(vendor string, at utc.Time) error {
	vendor = strings.TrimSpace(vendor)
	if vendor == "" {
		return errors.NewValidationError("vendor", vendor, "cannot be empty")
	}
	if w.Status != StatusUnclaimed {
		return errors.NewValidationError("status", w.Status, "only unclaimed records can be claimed")
	}
	w.Status = StatusClaimed
	w.ClaimedBy = vendor
	w.ClaimedAt = &at
	return nil
}

// Handover marks a claimed record as packed and ready for the carrier.
func (w *Workflow) Handover(at utc.Time) error {
	if w.Status != StatusClaimed {
		return errors.NewValidationError("status", w.Status, "only claimed records can be handed over")
	}
	w.Status = StatusReadyForHandover
	w.HandoverAt = &at
	return nil
}

// Release returns a claimed record to the pool, remembering who held it.
func (w *Workflow) Release() error {
	if w.Status == StatusUnclaimed {
		return errors.NewValidationError("status", w.Status, "record is not claimed")
	}
	w.LastClaimedBy = w.ClaimedBy
	w.LastClaimedAt = w.ClaimedAt
	w.Status = StatusUnclaimed
	w.ClaimedBy = ""
	w.ClaimedAt = nil
	w.HandoverAt = nil
	return nil
}
