// Package snapshot implements the Snapshot Builder (§4.4): assembling the
// curated channel list and guide document for a profile, writing them
// atomically to a new snapshot directory, and promoting the result to
// active.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"lineupd/internal/catalog"
)

const (
	channelIndexFile = "channel_index.json"
	guideFile        = "guide.xml"
)

// Builder assembles and promotes snapshots for one base output directory.
type Builder struct {
	store          *catalog.Store
	baseDir        string
	retentionCount int
}

// NewBuilder returns a Builder writing artifacts under baseDir, retaining
// at most retentionCount snapshots per profile (§4.4.4, default 3).
func NewBuilder(store *catalog.Store, baseDir string, retentionCount int) *Builder {
	return &Builder{store: store, baseDir: baseDir, retentionCount: retentionCount}
}

type assembledChannel struct {
	channel     catalog.ProviderChannel
	outputGroup string
	number      *int
}

// Build assembles the curated lineup for profile/provider from the
// catalog's current active channels and filters, writes the snapshot
// artifacts, and promotes it to active. guideBytes is the guide document
// to publish verbatim (already UTF-8, already substituted with an empty
// document by the caller on guide-fetch failure).
func (b *Builder) Build(ctx context.Context, profile catalog.Profile, provider catalog.Provider, guideBytes []byte) (catalog.Snapshot, error) {
	channels, err := b.store.ActiveChannelsForPublish(ctx, provider.ID, provider.IncludeVOD, provider.IncludeSeries)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: load channels: %w", err)
	}

	includedFilters, err := b.store.IncludedGroupFilters(ctx, profile.ID)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: load filters: %w", err)
	}
	filterByGroup := make(map[string]catalog.ProfileGroupFilter, len(includedFilters))
	for _, f := range includedFilters {
		filterByGroup[f.ProviderGroupID] = f
	}

	overridesByFilter := make(map[string]map[string]catalog.ProfileGroupChannelFilter)
	for _, f := range includedFilters {
		if f.ChannelMode != catalog.ChannelModeSelect {
			continue
		}
		overrides, err := b.store.ChannelOverridesForFilter(ctx, f.ID)
		if err != nil {
			return catalog.Snapshot{}, fmt.Errorf("snapshot: load overrides: %w", err)
		}
		byChannel := make(map[string]catalog.ProfileGroupChannelFilter, len(overrides))
		for _, o := range overrides {
			byChannel[o.ProviderChannelID] = o
		}
		overridesByFilter[f.ID] = byChannel
	}

	assembledByGroup := make(map[string][]assembledChannel)
	filterUsedByGroup := make(map[string]*catalog.ProfileGroupFilter)

	for _, ch := range channels {
		switch ch.ContentType {
		case catalog.ContentLive:
			f, ok := filterByGroup[ch.GroupID]
			if !ok {
				continue // not included: live channels are opt-in (§4.4.2)
			}
			fCopy := f
			switch f.ChannelMode {
			case catalog.ChannelModeSelect:
				overrides := overridesByFilter[f.ID]
				ov, has := overrides[ch.ID]
				if !has {
					continue
				}
				outputGroup := ov.OutputGroupName
				if outputGroup == "" {
					outputGroup = outputNameOrRaw(f, ch.GroupRawName)
				}
				assembledByGroup[outputGroup] = append(assembledByGroup[outputGroup], assembledChannel{
					channel: ch, outputGroup: outputGroup, number: ov.ChannelNumber,
				})
				filterUsedByGroup[outputGroup] = &fCopy
			default: // all
				outputGroup := outputNameOrRaw(f, ch.GroupRawName)
				assembledByGroup[outputGroup] = append(assembledByGroup[outputGroup], assembledChannel{
					channel: ch, outputGroup: outputGroup,
				})
				filterUsedByGroup[outputGroup] = &fCopy
			}
		case catalog.ContentVOD:
			outputGroup := ch.GroupRawName
			if outputGroup == "" {
				outputGroup = "Movies"
			}
			assembledByGroup[outputGroup] = append(assembledByGroup[outputGroup], assembledChannel{channel: ch, outputGroup: outputGroup})
		case catalog.ContentSeries:
			outputGroup := ch.GroupRawName
			if outputGroup == "" {
				outputGroup = "Series"
			}
			assembledByGroup[outputGroup] = append(assembledByGroup[outputGroup], assembledChannel{channel: ch, outputGroup: outputGroup})
		}
	}

	entries := make([]catalog.ChannelIndexEntry, 0, len(channels))
	groupNames := make([]string, 0, len(assembledByGroup))
	for name := range assembledByGroup {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, groupName := range groupNames {
		ordered := orderGroup(assembledByGroup[groupName], filterUsedByGroup[groupName])
		for _, a := range ordered {
			entries = append(entries, toIndexEntry(a, profile.ID))
		}
	}

	snapshotID := newSnapshotDirName()
	channelIndexPath, guidePath, err := b.writeArtifacts(snapshotID, profile.OutputName, entries, guideBytes)
	if err != nil {
		return catalog.Snapshot{}, err
	}

	if err := b.store.InsertStagedSnapshot(ctx, snapshotID, profile.ID, channelIndexPath, guidePath, len(entries)); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: insert staged: %w", err)
	}
	if err := b.store.PromoteSnapshot(ctx, profile.ID, snapshotID); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: promote: %w", err)
	}
	if err := b.store.ApplyRetention(ctx, profile.ID, b.retentionCount); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: retention: %w", err)
	}

	active, ok, err := b.store.ActiveSnapshot(ctx, profile.ID)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: load promoted snapshot: %w", err)
	}
	if !ok {
		return catalog.Snapshot{}, fmt.Errorf("snapshot: promoted snapshot %s vanished", snapshotID)
	}
	return active, nil
}

// BuildOnly assembles a snapshot from the catalog's current state without
// fetching anything, reusing the profile's previous active guide file
// (§4.4, "build-only" entry point).
func (b *Builder) BuildOnly(ctx context.Context, profile catalog.Profile, provider catalog.Provider) (catalog.Snapshot, error) {
	guideBytes, err := b.priorGuideBytes(ctx, profile.ID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return b.Build(ctx, profile, provider, guideBytes)
}

func (b *Builder) priorGuideBytes(ctx context.Context, profileID string) ([]byte, error) {
	active, ok, err := b.store.ActiveSnapshot(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load active: %w", err)
	}
	if !ok {
		return emptyGuideFallback(), nil
	}
	data, err := os.ReadFile(active.GuidePath)
	if err != nil {
		return emptyGuideFallback(), nil
	}
	return data, nil
}

func emptyGuideFallback() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<tv></tv>` + "\n")
}

func outputNameOrRaw(f catalog.ProfileGroupFilter, raw string) string {
	if f.OutputName != "" {
		return f.OutputName
	}
	return raw
}

// orderGroup implements the §4.4.2 deterministic ordering within one
// output group: explicit numbers ascending, auto-numbered channels filling
// the gap from the parent filter's auto_num_start (if set), then any
// leftover unnumbered channels ordered by display name then stream URL.
func orderGroup(items []assembledChannel, filter *catalog.ProfileGroupFilter) []assembledChannel {
	var explicit, implicit []assembledChannel
	for _, it := range items {
		if it.number != nil {
			explicit = append(explicit, it)
		} else {
			implicit = append(implicit, it)
		}
	}

	sort.Slice(implicit, func(i, j int) bool {
		if implicit[i].channel.DisplayName != implicit[j].channel.DisplayName {
			return implicit[i].channel.DisplayName < implicit[j].channel.DisplayName
		}
		return implicit[i].channel.StreamURL < implicit[j].channel.StreamURL
	})

	var autoNumbered []assembledChannel
	var leftover []assembledChannel

	if filter != nil && filter.AutoNumStart != nil {
		next := *filter.AutoNumStart
		for _, it := range implicit {
			if filter.AutoNumEnd != nil && next > *filter.AutoNumEnd {
				leftover = append(leftover, it)
				continue
			}
			n := next
			it.number = &n
			autoNumbered = append(autoNumbered, it)
			next++
		}
	} else {
		leftover = implicit
	}

	numbered := append(append([]assembledChannel{}, explicit...), autoNumbered...)
	sort.Slice(numbered, func(i, j int) bool { return *numbered[i].number < *numbered[j].number })

	return append(numbered, leftover...)
}

func toIndexEntry(a assembledChannel, profileID string) catalog.ChannelIndexEntry {
	streamKey := catalog.StreamKey(a.channel.TvgID, a.channel.StreamURL, a.outputGroup, a.channel.DisplayName, profileID)
	e := catalog.ChannelIndexEntry{
		StreamKey:   streamKey,
		DisplayName: a.channel.DisplayName,
		TvgID:       a.channel.TvgID,
		TvgName:     a.channel.TvgName,
		LogoURL:     a.channel.Logo,
		GroupTitle:  a.outputGroup,
		StreamURL:   a.channel.StreamURL,
	}
	if a.number != nil {
		e.TvgChno = *a.number
	}
	return e
}

// writeArtifacts serializes entries and guideBytes to a fresh snapshot
// directory under <baseDir>/<outputName>/<snapshotId>/, using
// write-temp-then-rename so readers never observe a partial file.
func (b *Builder) writeArtifacts(snapshotID, outputName string, entries []catalog.ChannelIndexEntry, guideBytes []byte) (channelIndexPath, guidePath string, err error) {
	dir := filepath.Join(b.baseDir, outputName, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}

	channelIndexPath = filepath.Join(dir, channelIndexFile)
	guidePath = filepath.Join(dir, guideFile)

	if entries == nil {
		entries = []catalog.ChannelIndexEntry{}
	}
	indexBytes, err := json.Marshal(entries)
	if err != nil {
		return "", "", fmt.Errorf("snapshot: marshal channel index: %w", err)
	}

	if err := atomicWrite(channelIndexPath, indexBytes); err != nil {
		return "", "", err
	}
	if err := atomicWrite(guidePath, guideBytes); err != nil {
		return "", "", err
	}

	return channelIndexPath, guidePath, nil
}

func newSnapshotDirName() string {
	return uuid.NewString()
}

func atomicWrite(path string, data []byte) error {
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("snapshot: create pending file %s: %w", path, err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("snapshot: replace %s: %w", path, err)
	}
	return nil
}
