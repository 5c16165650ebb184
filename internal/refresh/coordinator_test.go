package refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lineupd/internal/catalog"
	"lineupd/internal/errs"
	"lineupd/internal/persistence/sqlite"
	"lineupd/internal/snapshot"
)

// fakeClock never fires on its own; tests call fire() to release one
// pending After() call, keeping the schedule loop deterministic.
type fakeClock struct {
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{ch: make(chan time.Time)}
}

func (f *fakeClock) After(time.Duration) <-chan time.Time { return f.ch }
func (f *fakeClock) fire()                                { f.ch <- time.Time{} }

func newTestCoordinator(t *testing.T) (*Coordinator, *catalog.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sqlite.Open(dbPath, sqlite.Config{BusyTimeout: 2 * time.Second, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := catalog.NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	builder := snapshot.NewBuilder(store, t.TempDir(), 3)
	c := New(store, builder, time.Hour, time.Minute, 0)
	return c, store
}

func seedProviderProfile(t *testing.T, store *catalog.Store, playlistURL string) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.DB().ExecContext(ctx, `
		INSERT INTO providers (id, name, playlist_url, guide_url, headers_json, user_agent, timeout_seconds, enabled, is_active, include_vod, include_series)
		VALUES ('prov-1', 'p1', ?, '', '{}', '', 5, 1, 1, 1, 1)`, playlistURL); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO profiles (id, name, output_name, enabled) VALUES ('prof-1', 'm3undle', 'm3undle', 1)`); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO profile_providers (profile_id, provider_id, priority, enabled) VALUES ('prof-1', 'prov-1', 0, 1)`); err != nil {
		t.Fatalf("seed profile_providers: %v", err)
	}
}

func TestTriggerFullNoActiveProviderIsNoOp(t *testing.T) {
	c, _ := newTestCoordinator(t)
	err := c.TriggerFull(context.Background())
	if !errors.Is(err, errs.ErrNoActiveProvider) {
		t.Fatalf("err = %v, want ErrNoActiveProvider", err)
	}
}

func TestTriggerFullBuildsSnapshotFromPlaylist(t *testing.T) {
	c, store := newTestCoordinator(t)

	playlistPath := filepath.Join(t.TempDir(), "p.m3u")
	const m3u = "#EXTM3U\n#EXTINF:-1 tvg-id=\"cnn.us\" group-title=\"News\",CNN\nhttp://x/live/1.ts\n"
	if err := os.WriteFile(playlistPath, []byte(m3u), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	seedProviderProfile(t, store, "file://"+playlistPath)

	if err := c.TriggerFull(context.Background()); err != nil {
		t.Fatalf("trigger full: %v", err)
	}

	snap, ok, err := store.ActiveSnapshot(context.Background(), "prof-1")
	if err != nil || !ok {
		t.Fatalf("active snapshot: ok=%v err=%v", ok, err)
	}
	if snap.ChannelCountPublished != 0 {
		t.Fatalf("channel count = %d, want 0 (News not yet included)", snap.ChannelCountPublished)
	}

	run, ok, err := store.LatestFetchRun(context.Background(), "prov-1")
	if err != nil || !ok {
		t.Fatalf("latest fetch run: ok=%v err=%v", ok, err)
	}
	if run.Status != catalog.FetchRunOK {
		t.Fatalf("fetch run status = %v, want ok", run.Status)
	}
}

func TestTriggerFullRejectsConcurrentRun(t *testing.T) {
	c, _ := newTestCoordinator(t)
	if !c.acquire() {
		t.Fatal("expected to acquire gate")
	}
	defer c.release()

	err := c.TriggerFull(context.Background())
	if !errors.Is(err, errs.ErrConcurrentRefresh) {
		t.Fatalf("err = %v, want ErrConcurrentRefresh", err)
	}
}

func TestIsBusyReflectsGateState(t *testing.T) {
	c, _ := newTestCoordinator(t)
	if c.IsBusy() {
		t.Fatal("expected idle coordinator to report not busy")
	}
	c.acquire()
	if !c.IsBusy() {
		t.Fatal("expected held gate to report busy")
	}
	c.release()
	if c.IsBusy() {
		t.Fatal("expected released gate to report not busy")
	}
}

func TestRunSkipsScheduledTickWhileBusy(t *testing.T) {
	c, store := newTestCoordinator(t)
	_ = store
	clock := newFakeClock()
	c.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	clock.fire() // release startup delay; startup refresh runs and fails (no provider), gate released

	// Hold the gate so the next scheduled tick is observed as busy.
	for !c.acquire() {
		time.Sleep(time.Millisecond)
	}
	clock.fire() // scheduled tick while gate held: must be skipped, not blocked
	time.Sleep(10 * time.Millisecond)
	c.release()

	cancel()
	<-done
}

func TestEventBusPublishesStartedAndCompleted(t *testing.T) {
	c, store := newTestCoordinator(t)

	playlistPath := filepath.Join(t.TempDir(), "p.m3u")
	const m3u = "#EXTM3U\n#EXTINF:-1 tvg-id=\"cnn.us\" group-title=\"News\",CNN\nhttp://x/live/1.ts\n"
	if err := os.WriteFile(playlistPath, []byte(m3u), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	seedProviderProfile(t, store, "file://"+playlistPath)

	events, unsubscribe := c.Events().Subscribe()
	defer unsubscribe()

	if err := c.TriggerFull(context.Background()); err != nil {
		t.Fatalf("trigger full: %v", err)
	}

	started := <-events
	if started.Kind != EventRefreshStarted {
		t.Fatalf("first event = %v, want started", started.Kind)
	}
	completed := <-events
	if completed.Kind != EventRefreshCompleted || !completed.Succeeded {
		t.Fatalf("second event = %+v, want succeeded completed", completed)
	}
}
