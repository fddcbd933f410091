package ordersync

import (
	"context"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/reconciler"
	"github.com/agentstation/ordersync/pkg/store"
	pkgsync "github.com/agentstation/ordersync/pkg/sync"
)

// Compile-time interface check to ensure proper implementation.
var _ Syncer = (*client)(nil)

// Syncer runs reconciliation cycles.
type Syncer interface {
	// Sync runs one fetch, merge, write and enhancement cycle. Cycles on
	// the same client never overlap.
	Sync(ctx context.Context, opts ...pkgsync.Option) (*pkgsync.Result, error)
}

// Cycle stages reported in errors.SyncError.
const (
	StageFetch   = "fetch"
	StageLoad    = "load"
	StageMerge   = "merge"
	StageWrite   = "write"
	StageEnhance = "enhance"
)

// Sync runs one cycle and reports it to the cycle hooks.
func (c *client) Sync(ctx context.Context, opts ...pkgsync.Option) (*pkgsync.Result, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Parse and validate options
	options := pkgsync.Defaults().Apply(c.options.syncDefaults...).Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}

	// Step 2: Serialize cycles
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	// Step 3: Setup context with timeout
	var cancel context.CancelFunc
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		cancel = func() {} // No-op cancel if no timeout
	}
	defer cancel()

	// Step 4: Tag the cycle
	cycleID := uuid.NewString()
	ctx = logging.WithCycleID(ctx, cycleID)

	res, err := c.cycle(ctx, cycleID, options)
	c.fireCycleHooks(ctx, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *client) cycle(ctx context.Context, cycleID string, options *pkgsync.Options) (*pkgsync.Result, error) {
	logger := logging.FromContext(ctx)
	started := utc.Now()
	begin := time.Now()

	// Step 1: Fetch and load concurrently. A failed fetch leaves the store
	// untouched.
	var (
		incoming []orders.UpstreamOrder
		snapshot *store.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if incoming, err = c.fetcher.FetchOpenOrders(gctx); err != nil {
			return errors.NewSyncError(cycleID, StageFetch, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snapshot, err = c.store.Load(gctx); err != nil {
			return errors.NewSyncError(cycleID, StageLoad, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Cycle aborted")
		return nil, err
	}

	// Step 2: Merge with the stored rows, never reusing a retired id
	merger, err := reconciler.New(c.options.reconcilerOptions(snapshot.MaxID())...)
	if err != nil {
		return nil, errors.NewSyncError(cycleID, StageMerge, err)
	}
	merged, err := merger.Merge(ctx, snapshot.Records, incoming)
	if err != nil {
		return nil, errors.NewSyncError(cycleID, StageMerge, err)
	}

	res := &pkgsync.Result{
		CycleID:          cycleID,
		StartedAt:        started,
		Orders:           merged.Stats.Orders,
		Lines:            merged.Stats.Lines,
		SkippedOrders:    merged.Stats.SkippedOrders,
		DegenerateSplits: merged.Stats.DegenerateSplit,
		Rows:             len(merged.Rows),
		LastID:           merged.LastID,
		Changed:          merged.Changed,
		Changeset:        merged.Changeset,
		DryRun:           options.DryRun,
	}

	// Step 3: Log change summary
	if merged.NeedsWrite() {
		logger.Info().
			Bool("key_set_changed", merged.Changed).
			Int("added", res.Changeset.Summary.Added).
			Int("updated", res.Changeset.Summary.Updated).
			Int("removed", res.Changeset.Summary.Removed).
			Msg("Changes detected")
	} else {
		logger.Info().Int("rows", res.Rows).Msg("No changes detected")
	}

	// Step 4: Write when the merge changed anything
	rows := merged.Rows
	shouldWrite := merged.NeedsWrite() || options.Force
	switch {
	case options.DryRun:
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - no changes applied")
	case shouldWrite:
		write, err := c.store.Replace(ctx, merged.Rows)
		if err != nil {
			logger.Error().Err(err).Msg("Record write failed")
			return nil, errors.NewSyncError(cycleID, StageWrite, err)
		}
		res.Write = write
		if write.Written() {
			c.hooks.triggerChangeset(merged.Changeset)

			// Versions moved, enhance what the store now holds
			if !options.SkipEnhancement && len(c.pipeline.Enhancers()) > 0 {
				reloaded, err := c.store.Load(ctx)
				if err != nil {
					res.EnhancementErr = errors.NewSyncError(cycleID, StageEnhance, err)
					rows = nil
				} else {
					rows = reloaded.Records
				}
			}
		}
	}

	// Step 5: Best-effort enhancement, never rolls back the write
	if !options.DryRun && !options.SkipEnhancement && rows != nil {
		c.enhance(ctx, cycleID, rows, res)
	}
	if res.EnhancementErr != nil {
		logger.Warn().Err(res.EnhancementErr).Msg("Enhancement pass incomplete")
	}

	res.Duration = time.Since(begin)
	logger.Info().
		Dur("duration", res.Duration).
		Str("summary", res.Summary()).
		Msg("Cycle completed")
	return res, nil
}

// enhance backfills display fields and persists them with a second write.
func (c *client) enhance(ctx context.Context, cycleID string, rows []*orders.Record, res *pkgsync.Result) {
	if len(c.pipeline.Enhancers()) == 0 {
		return
	}
	touched, stats := c.pipeline.Run(ctx, rows)
	res.Enhancement = stats
	if len(touched) == 0 {
		return
	}

	write, err := c.store.Replace(ctx, rows)
	if err != nil {
		res.EnhancementErr = errors.NewSyncError(cycleID, StageEnhance, err)
		return
	}
	res.EnhancementWritten = write.Updated
}
