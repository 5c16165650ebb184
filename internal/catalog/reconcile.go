package catalog

import (
	"context"
	"fmt"
	"sort"

	"lineupd/internal/fetch"
	"lineupd/internal/playlist"
)

// Reconciler merges parsed playlist entries into the Catalog Store under
// one provider (§4.3). It is the sole writer of groups, channels, and
// fetch-run-linked state during a refresh.
type Reconciler struct {
	store *Store
}

// NewReconciler constructs a Reconciler bound to store.
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile runs the five ordered steps of §4.3 inside one transaction:
// group reconcile, group deactivation, filter backfill, channel upsert,
// channel deactivation. profileID identifies the profile whose filters
// gate the excluded-group skip and receive pending-filter backfill.
func (r *Reconciler) Reconcile(ctx context.Context, providerID, profileID, fetchRunID string, entries []playlist.Entry) (int, error) {
	now := fmtTime(nowUTC())

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("catalog: begin reconcile tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	grouped := groupEntries(entries)

	// Step 1: group reconcile.
	groupIDs := make(map[string]string, len(grouped))
	seenGroupNames := make(map[string]bool, len(grouped))
	for name, g := range grouped {
		seenGroupNames[name] = true
		id, err := r.store.UpsertGroup(ctx, tx, providerID, name, len(g.entries), g.contentType, now)
		if err != nil {
			return 0, err
		}
		groupIDs[name] = id
	}

	// Step 2: group deactivation.
	if err := r.store.DeactivateGroupsAbsent(ctx, tx, providerID, seenGroupNames); err != nil {
		return 0, err
	}

	// Step 3: filter backfill (completes before channel upsert so the
	// excluded-group skip below sees a consistent filter set).
	if err := r.store.BackfillPendingFilters(ctx, tx, providerID, profileID); err != nil {
		return 0, err
	}

	// Step 4: channel upsert.
	occurrence := make(map[string]int)
	seenKeys := make(map[string]bool)
	channelCount := 0
	for name, g := range grouped {
		decision, err := r.store.GroupFilterDecision(ctx, tx, profileID, groupIDs[name])
		if err != nil {
			return 0, err
		}
		if decision == DecisionExclude {
			continue
		}
		for _, e := range g.entries {
			if e.DisplayName == "" || e.StreamURL == "" {
				continue
			}
			e.StreamURL = fetch.NormalizeURL(e.StreamURL)
			identKey := identityPrefix(e)
			occurrence[identKey]++
			stableKey := StableChannelKey(e.TvgID, e.DisplayName, e.StreamURL, e.GroupTitle, occurrence[identKey])
			seenKeys[stableKey] = true
			channelCount++

			ch := ProviderChannel{
				StableKey:    stableKey,
				DisplayName:  e.DisplayName,
				TvgID:        e.TvgID,
				TvgName:      e.TvgName,
				Logo:         e.TvgLogo,
				StreamURL:    e.StreamURL,
				GroupRawName: e.GroupTitle,
				GroupID:      groupIDs[name],
				ContentType:  catalogContentType(playlist.Classify(e.StreamURL)),
			}
			if err := r.store.UpsertChannel(ctx, tx, providerID, ch, now, fetchRunID); err != nil {
				return 0, err
			}
		}
	}

	// Step 5: channel deactivation.
	if err := r.store.DeactivateChannelsAbsent(ctx, tx, providerID, seenKeys); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return channelCount, nil
}

type groupAgg struct {
	entries     []playlist.Entry
	contentType ContentType
}

func groupEntries(entries []playlist.Entry) map[string]*groupAgg {
	out := make(map[string]*groupAgg)
	for _, e := range entries {
		g, ok := out[e.GroupTitle]
		if !ok {
			g = &groupAgg{}
			out[e.GroupTitle] = g
		}
		g.entries = append(g.entries, e)
	}
	for _, g := range out {
		g.contentType = aggregateContentType(g.entries)
	}
	return out
}

// aggregateContentType derives a group's content_type label (§4.3 step 1):
// homogeneous live/vod/series if all entries agree, "mixed" if they
// combine, "live" if the group is empty.
func aggregateContentType(entries []playlist.Entry) ContentType {
	if len(entries) == 0 {
		return ContentLive
	}
	counts := map[ContentType]int{}
	for _, e := range entries {
		counts[catalogContentType(playlist.Classify(e.StreamURL))]++
	}
	distinct := make([]ContentType, 0, len(counts))
	for ct := range counts {
		distinct = append(distinct, ct)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })
	if len(distinct) == 1 {
		return distinct[0]
	}
	return ContentMixed
}

func catalogContentType(ct playlist.ContentType) ContentType {
	switch ct {
	case playlist.VOD:
		return ContentVOD
	case playlist.Series:
		return ContentSeries
	default:
		return ContentLive
	}
}

// identityPrefix is the occurrence-counting key: identical (tvgID-or-name,
// streamURL, group, name) tuples share a counter so the Nth duplicate gets
// a "dup:N" suffix in its stable identity.
func identityPrefix(e playlist.Entry) string {
	base := e.TvgID
	if base == "" {
		base = e.DisplayName + "\x1f" + e.StreamURL
	}
	return base + "\x1f" + e.StreamURL + "\x1f" + e.GroupTitle + "\x1f" + e.DisplayName
}
