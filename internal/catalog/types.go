// Package catalog implements the Catalog Store (§3 of the specification):
// the durable relational model holding providers, groups, channels,
// filters, fetch-run history, and snapshot metadata, plus the Reconciler
// that is the sole writer of groups/channels during a refresh.
package catalog

import "time"

// ContentType partitions channels by media kind, derived purely from the
// stream URL by the classifier in internal/playlist.
type ContentType string

const (
	ContentLive   ContentType = "live"
	ContentVOD    ContentType = "vod"
	ContentSeries ContentType = "series"
	ContentMixed  ContentType = "mixed"
)

// FilterDecision is the operator's disposition on a ProviderGroup.
type FilterDecision string

const (
	DecisionPending FilterDecision = "pending"
	DecisionInclude FilterDecision = "include"
	DecisionExclude FilterDecision = "exclude"
)

// ChannelMode controls how a ProfileGroupFilter selects channels from its group.
type ChannelMode string

const (
	ChannelModeAll    ChannelMode = "all"
	ChannelModeSelect ChannelMode = "select"
)

// FetchRunType distinguishes a snapshot-producing fetch from a preview
// fetch. A build-only cycle records no FetchRun.
type FetchRunType string

const (
	FetchRunSnapshot FetchRunType = "snapshot"
	FetchRunPreview  FetchRunType = "preview"
)

// FetchRunStatus tracks the lifecycle of one fetch attempt.
type FetchRunStatus string

const (
	FetchRunRunning FetchRunStatus = "running"
	FetchRunOK      FetchRunStatus = "ok"
	FetchRunFail    FetchRunStatus = "fail"
)

// SnapshotStatus tracks the promotion lifecycle of a Snapshot row.
type SnapshotStatus string

const (
	SnapshotStaged   SnapshotStatus = "staged"
	SnapshotActive   SnapshotStatus = "active"
	SnapshotArchived SnapshotStatus = "archived"
)

// Provider is one upstream IPTV source.
type Provider struct {
	ID             string
	Name           string
	PlaylistURL    string
	GuideURL       string
	Headers        map[string]string
	UserAgent      string
	TimeoutSeconds int
	Enabled        bool
	IsActive       bool
	IncludeVOD     bool
	IncludeSeries  bool
}

// Profile is one named output lineup ("m3undle" in the walkthrough).
type Profile struct {
	ID         string
	Name       string
	OutputName string
	Enabled    bool
}

// ProfileProvider is the ordered association between a Profile and a Provider.
type ProfileProvider struct {
	ProfileID  string
	ProviderID string
	Priority   int
	Enabled    bool
}

// ProviderGroup is a raw upstream group ("group-title") under one provider.
type ProviderGroup struct {
	ID           string
	ProviderID   string
	RawName      string
	FirstSeen    time.Time
	LastSeen     time.Time
	Active       bool
	ChannelCount int
	ContentType  ContentType
}

// ProviderChannel is a single upstream channel entry under one provider.
type ProviderChannel struct {
	ID             string
	ProviderID     string
	StableKey      string
	DisplayName    string
	TvgID          string
	TvgName        string
	Logo           string
	StreamURL      string
	GroupRawName   string
	GroupID        string
	ContentType    ContentType
	FirstSeen      time.Time
	LastSeen       time.Time
	Active         bool
	LastFetchRunID string
}

// ProfileGroupFilter is the operator's decision on one ProviderGroup within one Profile.
type ProfileGroupFilter struct {
	ID              string
	ProfileID       string
	ProviderGroupID string
	Decision        FilterDecision
	ChannelMode     ChannelMode
	OutputName      string
	AutoNumStart    *int
	AutoNumEnd      *int
	TrackNewChannels bool
}

// ProfileGroupChannelFilter is a per-channel override under a select-mode filter.
type ProfileGroupChannelFilter struct {
	ID                string
	ParentFilterID    string
	ProviderChannelID string
	OutputGroupName   string
	ChannelNumber     *int
}

// FetchRun records one fetch attempt against a provider.
type FetchRun struct {
	ID               string
	ProviderID       string
	Type             FetchRunType
	Started          time.Time
	Finished         time.Time
	Status           FetchRunStatus
	BytesPlaylist    int64
	BytesGuide       int64
	ChannelCountSeen int
	ErrorSummary     string
}

// Snapshot is one immutable, atomically-promoted published artifact set.
type Snapshot struct {
	ID                     string
	ProfileID              string
	Created                time.Time
	Status                 SnapshotStatus
	ChannelIndexPath       string
	GuidePath              string
	ChannelCountPublished  int
	ErrorSummary           string
}

// ChannelIndexEntry is one row of the on-disk channel_index.json artifact.
type ChannelIndexEntry struct {
	StreamKey   string `json:"streamKey"`
	DisplayName string `json:"displayName"`
	TvgID       string `json:"tvgId,omitempty"`
	TvgName     string `json:"tvgName,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
	GroupTitle  string `json:"groupTitle,omitempty"`
	TvgChno     int    `json:"tvgChno,omitempty"`
	StreamURL   string `json:"streamUrl"`
}
