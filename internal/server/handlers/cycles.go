package handlers

import (
	"net/http"
	"sync"

	"github.com/agentstation/utc"

	"github.com/agentstation/ordersync/internal/cmd/output"
	"github.com/agentstation/ordersync/internal/metrics"
	"github.com/agentstation/ordersync/internal/server/response"
	"github.com/agentstation/ordersync/pkg/errors"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// CycleStatus describes a finished cycle.
type CycleStatus struct {
	output.ResultView
	Outcome    string   `json:"outcome"`
	Error      string   `json:"error,omitempty"`
	FinishedAt utc.Time `json:"finished_at"`
}

// NewCycleStatus builds the status of a cycle from what Sync returned.
// res may be nil when the cycle failed before the merge.
func NewCycleStatus(res *pkgsync.Result, err error) CycleStatus {
	st := CycleStatus{
		Outcome:    metrics.Outcome(err),
		FinishedAt: utc.Now(),
	}
	if res != nil {
		st.ResultView = output.NewResultView(res)
	}
	if err != nil {
		st.Error = err.Error()
		var syncErr *errors.SyncError
		if st.CycleID == "" && errors.As(err, &syncErr) {
			st.CycleID = syncErr.CycleID
		}
	}
	return st
}

// Tracker remembers the most recent cycle and counts outcomes.
type Tracker struct {
	mu     sync.RWMutex
	last   *CycleStatus
	total  int
	failed int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records a finished cycle and returns its status.
func (t *Tracker) Observe(res *pkgsync.Result, err error) CycleStatus {
	st := NewCycleStatus(res, err)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &st
	t.total++
	if err != nil {
		t.failed++
	}
	return st
}

// Last returns the most recent cycle status.
func (t *Tracker) Last() (CycleStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return CycleStatus{}, false
	}
	return *t.last, true
}

// Counts returns the number of observed and failed cycles.
func (t *Tracker) Counts() (total, failed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total, t.failed
}

// HandleLastCycle handles GET /api/v1/cycles/last.
func (h *Handlers) HandleLastCycle(w http.ResponseWriter, _ *http.Request) {
	last, ok := h.cycles.Last()
	if !ok {
		response.NotFound(w, "No cycle has run yet", "")
		return
	}
	total, failed := h.cycles.Counts()
	response.OK(w, map[string]any{
		"cycle":  last,
		"total":  total,
		"failed": failed,
	})
}

// HandleSync handles POST /api/v1/sync?dry_run=&force=&skip_enhancement=.
// The cycle runs inline and the response carries its result.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dryRun, err := parseBool("dry_run", q.Get("dry_run"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	force, err := parseBool("force", q.Get("force"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	skip, err := parseBool("skip_enhancement", q.Get("skip_enhancement"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	res, err := h.backend.Sync(r.Context(),
		pkgsync.WithDryRun(dryRun),
		pkgsync.WithForce(force),
		pkgsync.WithSkipEnhancement(skip),
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, output.NewResultView(res))
}
