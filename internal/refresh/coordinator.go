// Package refresh implements the Refresh Coordinator (§4.5): the single
// in-process actor that drives one fetch-reconcile-build cycle at a time,
// on a schedule or on demand, and publishes its outcome on an event bus.
package refresh

import (
	"context"
	"fmt"
	"time"

	"lineupd/internal/catalog"
	"lineupd/internal/errs"
	"lineupd/internal/fetch"
	"lineupd/internal/guide"
	"lineupd/internal/log"
	"lineupd/internal/metrics"
	"lineupd/internal/playlist"
	"lineupd/internal/snapshot"
)

// Clock abstracts time so tests can control the schedule loop without
// sleeping for real.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Coordinator owns the execution gate, schedule loop, and wiring between
// the fetcher, reconciler, and snapshot builder.
type Coordinator struct {
	store   *catalog.Store
	builder *snapshot.Builder
	bus     *EventBus
	clock   Clock

	interval     time.Duration
	runTimeout   time.Duration
	startupDelay time.Duration

	gate chan struct{} // buffered(1); a held token means a run is in flight
}

// New returns a Coordinator. interval is the schedule-loop period,
// runTimeout bounds a single refresh, startupDelay delays the first
// scheduled run after Run starts (§4.5, §6 defaults).
func New(store *catalog.Store, builder *snapshot.Builder, interval, runTimeout, startupDelay time.Duration) *Coordinator {
	gate := make(chan struct{}, 1)
	gate <- struct{}{}
	return &Coordinator{
		store:        store,
		builder:      builder,
		bus:          NewEventBus(),
		clock:        realClock{},
		interval:     interval,
		runTimeout:   runTimeout,
		startupDelay: startupDelay,
		gate:         gate,
	}
}

// Events returns the coordinator's event bus for subscribers (e.g. logging
// hooks).
func (c *Coordinator) Events() *EventBus { return c.bus }

// IsBusy reports whether a refresh is currently running.
func (c *Coordinator) IsBusy() bool {
	select {
	case tok := <-c.gate:
		c.gate <- tok
		return false
	default:
		return true
	}
}

// acquire claims the execution gate, returning false if one was already
// held (§4.5: "only one refresh may execute at a time").
func (c *Coordinator) acquire() bool {
	select {
	case <-c.gate:
		return true
	default:
		return false
	}
}

func (c *Coordinator) release() {
	c.gate <- struct{}{}
}

// TriggerFull runs one full refresh (fetch playlist, fetch guide, reconcile,
// build) synchronously, returning errs.ErrConcurrentRefresh if a run is
// already in flight.
func (c *Coordinator) TriggerFull(ctx context.Context) error {
	if !c.acquire() {
		return errs.ErrConcurrentRefresh
	}
	defer c.release()
	return c.runFull(ctx)
}

// TriggerBuildOnly re-assembles a snapshot from the catalog's current state
// without fetching, returning errs.ErrConcurrentRefresh if a run is already
// in flight.
func (c *Coordinator) TriggerBuildOnly(ctx context.Context) error {
	if !c.acquire() {
		return errs.ErrConcurrentRefresh
	}
	defer c.release()
	return c.runBuildOnly(ctx)
}

// Run starts the startup-delay-then-schedule-loop sequence and blocks
// until ctx is cancelled (§4.5). A schedule tick that arrives while a run
// is in flight is skipped and logged, never queued (§8).
func (c *Coordinator) Run(ctx context.Context) error {
	logger := log.WithComponent("refresh")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.startupDelay):
	}

	if err := c.TriggerFull(ctx); err != nil {
		logger.Warn().Err(err).Msg("startup refresh did not run")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.interval):
			if !c.acquire() {
				logger.Info().Msg("scheduled refresh skipped: one already running")
				continue
			}
			func() {
				defer c.release()
				if err := c.runFull(ctx); err != nil {
					logger.Warn().Err(err).Msg("scheduled refresh failed")
				}
			}()
		}
	}
}

// runFull performs one fetch-reconcile-build cycle. Called with the gate
// already held.
func (c *Coordinator) runFull(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, c.runTimeout)
	defer cancel()

	logger := log.WithComponent("refresh")
	c.bus.Publish(Event{Kind: EventRefreshStarted})
	start := time.Now()

	err := c.doFull(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("refresh failed")
		metrics.ObserveRefresh("fail", start)
		c.bus.Publish(Event{Kind: EventRefreshCompleted, Succeeded: false, ErrorSummary: err.Error()})
		return err
	}
	metrics.ObserveRefresh("ok", start)
	c.bus.Publish(Event{Kind: EventRefreshCompleted, Succeeded: true})
	return nil
}

func (c *Coordinator) runBuildOnly(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, c.runTimeout)
	defer cancel()

	logger := log.WithComponent("refresh")
	c.bus.Publish(Event{Kind: EventRefreshStarted})
	start := time.Now()

	err := c.doBuildOnly(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("build-only refresh failed")
		metrics.ObserveRefresh("fail", start)
		c.bus.Publish(Event{Kind: EventRefreshCompleted, Succeeded: false, ErrorSummary: err.Error()})
		return err
	}
	metrics.ObserveRefresh("ok", start)
	c.bus.Publish(Event{Kind: EventRefreshCompleted, Succeeded: true})
	return nil
}

func (c *Coordinator) doFull(ctx context.Context) error {
	provider, ok, err := c.store.ActiveEnabledProvider(ctx)
	if err != nil {
		return fmt.Errorf("refresh: load active provider: %w", err)
	}
	if !ok {
		return errs.ErrNoActiveProvider
	}

	profile, ok, err := c.store.EnabledProfileForProvider(ctx, provider.ID)
	if err != nil {
		return fmt.Errorf("refresh: load profile: %w", err)
	}
	if !ok {
		return errs.ErrNoEnabledProfile
	}

	timeout := time.Duration(provider.TimeoutSeconds) * time.Second
	runID, err := c.store.CreateFetchRun(ctx, provider.ID, catalog.FetchRunSnapshot)
	if err != nil {
		return fmt.Errorf("refresh: create fetch run: %w", err)
	}
	// Log lines written through runLogger or finishRunFailed carry
	// job_id=runID. The fetcher, reconciler and builder do not log, and
	// runFull's outcome line is written without the job ID.
	ctx = log.ContextWithJobID(ctx, runID)
	runLogger := log.WithContext(ctx, log.WithComponent("refresh"))

	playlistResult, fetchErr := fetch.Fetch(ctx, provider.PlaylistURL, provider.Headers, provider.UserAgent, timeout)
	if fetchErr != nil {
		c.finishRunFailed(runID, fetchErr)
		return fmt.Errorf("refresh: fetch playlist: %w", fetchErr)
	}

	entries, parseErr := playlist.Parse(string(playlistResult.Bytes))
	if parseErr != nil {
		c.finishRunFailed(runID, parseErr)
		return fmt.Errorf("refresh: parse playlist: %w", parseErr)
	}

	guideBytes, guideErr := guide.Fetch(ctx, provider.GuideURL, provider.Headers, provider.UserAgent, timeout)
	if guideErr != nil {
		// Recovered locally: substitute the empty document and continue
		// (§4.4.1, §7 — GuideFetchFailed never aborts a refresh).
		runLogger.Warn().Err(guideErr).Msg("guide fetch failed, substituting empty guide")
		guideBytes = guide.EmptyGuide()
	}

	reconciler := catalog.NewReconciler(c.store)
	channelCount, reconcileErr := reconciler.Reconcile(ctx, provider.ID, profile.ID, runID, entries)
	if reconcileErr != nil {
		c.finishRunFailed(runID, reconcileErr)
		return fmt.Errorf("refresh: reconcile: %w", reconcileErr)
	}

	snap, err := c.builder.Build(ctx, profile, provider, guideBytes)
	if err != nil {
		c.finishRunFailed(runID, err)
		return fmt.Errorf("refresh: build snapshot: %w", err)
	}
	metrics.SnapshotChannelCount.WithLabelValues(profile.Name).Set(float64(snap.ChannelCountPublished))

	finishCtx := context.WithoutCancel(ctx)
	if err := c.store.FinishFetchRun(finishCtx, runID, catalog.FetchRunOK,
		playlistResult.ByteCount, int64(len(guideBytes)), channelCount, ""); err != nil {
		return fmt.Errorf("refresh: finish fetch run: %w", err)
	}
	return nil
}

func (c *Coordinator) doBuildOnly(ctx context.Context) error {
	provider, ok, err := c.store.ActiveEnabledProvider(ctx)
	if err != nil {
		return fmt.Errorf("refresh: load active provider: %w", err)
	}
	if !ok {
		return errs.ErrNoActiveProvider
	}
	profile, ok, err := c.store.EnabledProfileForProvider(ctx, provider.ID)
	if err != nil {
		return fmt.Errorf("refresh: load profile: %w", err)
	}
	if !ok {
		return errs.ErrNoEnabledProfile
	}
	if _, err := c.builder.BuildOnly(ctx, profile, provider); err != nil {
		return fmt.Errorf("refresh: build-only: %w", err)
	}
	return nil
}

// finishRunFailed persists the FetchRun's terminal state using a context
// detached from the run's own cancellation, so a timed-out or cancelled
// refresh still leaves an auditable failure row (§4.5, §8 "cancellation
// during fetch").
func (c *Coordinator) finishRunFailed(runID string, cause error) {
	detached := log.ContextWithJobID(context.WithoutCancel(context.Background()), runID)
	if err := c.store.FinishFetchRun(detached, runID, catalog.FetchRunFail, 0, 0, 0, cause.Error()); err != nil {
		log.WithContext(detached, log.WithComponent("refresh")).Error().Err(err).Msg("failed to persist fetch run failure")
	}
}
