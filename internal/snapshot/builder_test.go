package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lineupd/internal/catalog"
	"lineupd/internal/persistence/sqlite"
	"lineupd/internal/playlist"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sqlite.Open(dbPath, sqlite.Config{BusyTimeout: 2 * time.Second, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := catalog.NewStore(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

type fixture struct {
	store      *catalog.Store
	providerID string
	profileID  string
}

func seed(t *testing.T, includeVOD, includeSeries bool) fixture {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()

	providerID := "prov-1"
	if _, err := s.DB().ExecContext(ctx, `
		INSERT INTO providers (id, name, playlist_url, guide_url, headers_json, user_agent, timeout_seconds, enabled, is_active, include_vod, include_series)
		VALUES (?, 'p1', 'http://x/p.m3u', '', '{}', '', 30, 1, 1, ?, ?)`, providerID, boolInt(includeVOD), boolInt(includeSeries)); err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	profileID := "prof-1"
	if _, err := s.DB().ExecContext(ctx, `INSERT INTO profiles (id, name, output_name, enabled) VALUES (?, 'm3undle', 'm3undle', 1)`, profileID); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `INSERT INTO profile_providers (profile_id, provider_id, priority, enabled) VALUES (?, ?, 0, 1)`, profileID, providerID); err != nil {
		t.Fatalf("seed profile_providers: %v", err)
	}

	return fixture{store: s, providerID: providerID, profileID: profileID}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func includeGroup(t *testing.T, s *catalog.Store, profileID, groupRawName string) {
	t.Helper()
	groups, err := s.ListGroupsByProvider(context.Background(), "prov-1")
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	for _, g := range groups {
		if g.RawName == groupRawName {
			if _, err := s.DB().ExecContext(context.Background(), `
				UPDATE profile_group_filters SET decision = 'include' WHERE profile_id = ? AND provider_group_id = ?`, profileID, g.ID); err != nil {
				t.Fatalf("include group: %v", err)
			}
			return
		}
	}
	t.Fatalf("group %q not found", groupRawName)
}

func TestBuildEmitsIncludedLiveChannelsAndBypassesVOD(t *testing.T) {
	fx := seed(t, true, false)
	ctx := context.Background()

	entries := []playlist.Entry{
		{TvgID: "cnn.us", DisplayName: "CNN", GroupTitle: "News", StreamURL: "http://x/live/1.ts"},
		{DisplayName: "Movie One", GroupTitle: "", StreamURL: "http://x/movie/1.mkv"},
	}
	runID, err := fx.store.CreateFetchRun(ctx, fx.providerID, catalog.FetchRunSnapshot)
	if err != nil {
		t.Fatalf("create fetch run: %v", err)
	}
	r := catalog.NewReconciler(fx.store)
	if _, err := r.Reconcile(ctx, fx.providerID, fx.profileID, runID, entries); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	includeGroup(t, fx.store, fx.profileID, "News")

	provider, err := fx.store.GetProvider(ctx, fx.providerID)
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	profiles, err := fx.store.ListEnabledProfiles(ctx)
	if err != nil || len(profiles) != 1 {
		t.Fatalf("list profiles: %v %v", profiles, err)
	}

	b := NewBuilder(fx.store, t.TempDir(), 3)
	snap, err := b.Build(ctx, profiles[0], provider, []byte("<tv></tv>"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.ChannelCountPublished != 2 {
		t.Fatalf("channel count = %d, want 2 (News:CNN + Movies bucket)", snap.ChannelCountPublished)
	}

	raw, err := os.ReadFile(snap.ChannelIndexPath)
	if err != nil {
		t.Fatalf("read channel index: %v", err)
	}
	var out []catalog.ChannelIndexEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var sawCNN, sawMovie bool
	for _, e := range out {
		if e.DisplayName == "CNN" {
			sawCNN = true
			if e.GroupTitle != "News" {
				t.Errorf("CNN group = %q, want News", e.GroupTitle)
			}
		}
		if e.DisplayName == "Movie One" {
			sawMovie = true
			if e.GroupTitle != "Movies" {
				t.Errorf("Movie One group = %q, want Movies (unmatched bucket)", e.GroupTitle)
			}
		}
	}
	if !sawCNN || !sawMovie {
		t.Fatalf("missing expected entries: %+v", out)
	}
}

func TestBuildExcludesVODWhenProviderFlagDisabled(t *testing.T) {
	fx := seed(t, false, false)
	ctx := context.Background()

	entries := []playlist.Entry{
		{DisplayName: "Movie One", GroupTitle: "", StreamURL: "http://x/movie/1.mkv"},
	}
	runID, err := fx.store.CreateFetchRun(ctx, fx.providerID, catalog.FetchRunSnapshot)
	if err != nil {
		t.Fatalf("create fetch run: %v", err)
	}
	r := catalog.NewReconciler(fx.store)
	if _, err := r.Reconcile(ctx, fx.providerID, fx.profileID, runID, entries); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	provider, err := fx.store.GetProvider(ctx, fx.providerID)
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	profiles, _ := fx.store.ListEnabledProfiles(ctx)

	b := NewBuilder(fx.store, t.TempDir(), 3)
	snap, err := b.Build(ctx, profiles[0], provider, []byte("<tv></tv>"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.ChannelCountPublished != 0 {
		t.Fatalf("channel count = %d, want 0 (include_vod=false)", snap.ChannelCountPublished)
	}
}

func TestStreamKeyStableAcrossRefreshes(t *testing.T) {
	k1 := catalog.StreamKey("cnn.us", "http://x/s/1", "News", "CNN", "profile-1")
	k2 := catalog.StreamKey("cnn.us", "http://x/s/1", "News", "CNN", "profile-1")
	if k1 != k2 {
		t.Fatal("StreamKey is not stable for identical inputs")
	}
	if len(k1) != 16 {
		t.Fatalf("StreamKey length = %d, want 16", len(k1))
	}
}

// TestBuildTwiceFromIdenticalInputsProducesIdenticalIndex rebuilds from the
// same reconciled catalog state twice and diffs the two channel_index.json
// documents structurally: a rebuild must be byte-for-byte reproducible
// modulo ordering, never drift on repeated runs over unchanged input.
func TestBuildTwiceFromIdenticalInputsProducesIdenticalIndex(t *testing.T) {
	fx := seed(t, true, false)
	ctx := context.Background()

	entries := []playlist.Entry{
		{TvgID: "cnn.us", DisplayName: "CNN", GroupTitle: "News", StreamURL: "http://x/live/1.ts"},
		{TvgID: "bbc.uk", DisplayName: "BBC", GroupTitle: "News", StreamURL: "http://x/live/2.ts"},
	}
	runID, err := fx.store.CreateFetchRun(ctx, fx.providerID, catalog.FetchRunSnapshot)
	if err != nil {
		t.Fatalf("create fetch run: %v", err)
	}
	r := catalog.NewReconciler(fx.store)
	if _, err := r.Reconcile(ctx, fx.providerID, fx.profileID, runID, entries); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	includeGroup(t, fx.store, fx.profileID, "News")

	provider, err := fx.store.GetProvider(ctx, fx.providerID)
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	profiles, err := fx.store.ListEnabledProfiles(ctx)
	if err != nil || len(profiles) != 1 {
		t.Fatalf("list profiles: %v %v", profiles, err)
	}

	b := NewBuilder(fx.store, t.TempDir(), 3)

	readSortedIndex := func() []catalog.ChannelIndexEntry {
		snap, err := b.Build(ctx, profiles[0], provider, []byte("<tv></tv>"))
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		raw, err := os.ReadFile(snap.ChannelIndexPath)
		if err != nil {
			t.Fatalf("read channel index: %v", err)
		}
		var out []catalog.ChannelIndexEntry
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StreamKey < out[j].StreamKey })
		return out
	}

	first := readSortedIndex()
	second := readSortedIndex()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("channel_index.json drifted across identical rebuilds (-first +second):\n%s", diff)
	}
}

func TestBuildOnlyReusesPriorGuide(t *testing.T) {
	fx := seed(t, true, false)
	ctx := context.Background()

	entries := []playlist.Entry{
		{DisplayName: "Movie One", GroupTitle: "", StreamURL: "http://x/movie/1.mkv"},
	}
	runID, err := fx.store.CreateFetchRun(ctx, fx.providerID, catalog.FetchRunSnapshot)
	if err != nil {
		t.Fatalf("create fetch run: %v", err)
	}
	r := catalog.NewReconciler(fx.store)
	if _, err := r.Reconcile(ctx, fx.providerID, fx.profileID, runID, entries); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	provider, err := fx.store.GetProvider(ctx, fx.providerID)
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	profiles, _ := fx.store.ListEnabledProfiles(ctx)

	b := NewBuilder(fx.store, t.TempDir(), 3)
	const guideMarker = "<tv><channel id=\"marker\"/></tv>"
	if _, err := b.Build(ctx, profiles[0], provider, []byte(guideMarker)); err != nil {
		t.Fatalf("build: %v", err)
	}

	snap, err := b.BuildOnly(ctx, profiles[0], provider)
	if err != nil {
		t.Fatalf("build only: %v", err)
	}
	guideBytes, err := os.ReadFile(snap.GuidePath)
	if err != nil {
		t.Fatalf("read guide: %v", err)
	}
	if string(guideBytes) != guideMarker {
		t.Fatalf("guide = %q, want reused %q", guideBytes, guideMarker)
	}
}
