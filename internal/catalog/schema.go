package catalog

const schemaDDL = `
CREATE TABLE IF NOT EXISTS providers (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	playlist_url    TEXT NOT NULL,
	guide_url       TEXT NOT NULL DEFAULT '',
	headers_json    TEXT NOT NULL DEFAULT '{}',
	user_agent      TEXT NOT NULL DEFAULT '',
	timeout_seconds INTEGER NOT NULL DEFAULT 30,
	enabled         INTEGER NOT NULL DEFAULT 1,
	is_active       INTEGER NOT NULL DEFAULT 0,
	include_vod     INTEGER NOT NULL DEFAULT 0,
	include_series  INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_name ON providers(name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_is_active ON providers(is_active) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	output_name TEXT NOT NULL,
	enabled     INTEGER NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_name ON profiles(name);

CREATE TABLE IF NOT EXISTS profile_providers (
	profile_id  TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	enabled     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (profile_id, provider_id)
);

CREATE TABLE IF NOT EXISTS provider_groups (
	id            TEXT PRIMARY KEY,
	provider_id   TEXT NOT NULL,
	raw_name      TEXT NOT NULL,
	first_seen    TEXT NOT NULL,
	last_seen     TEXT NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1,
	channel_count INTEGER NOT NULL DEFAULT 0,
	content_type  TEXT NOT NULL DEFAULT 'live'
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_provider_groups_name ON provider_groups(provider_id, raw_name);

CREATE TABLE IF NOT EXISTS provider_channels (
	id                 TEXT PRIMARY KEY,
	provider_id        TEXT NOT NULL,
	stable_key         TEXT,
	display_name       TEXT NOT NULL,
	tvg_id             TEXT NOT NULL DEFAULT '',
	tvg_name           TEXT NOT NULL DEFAULT '',
	logo               TEXT NOT NULL DEFAULT '',
	stream_url         TEXT NOT NULL,
	group_raw_name     TEXT NOT NULL DEFAULT '',
	group_id           TEXT NOT NULL DEFAULT '',
	content_type       TEXT NOT NULL DEFAULT 'live',
	first_seen         TEXT NOT NULL,
	last_seen          TEXT NOT NULL,
	active             INTEGER NOT NULL DEFAULT 1,
	last_fetch_run_id  TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_provider_channels_stable_key
	ON provider_channels(provider_id, stable_key) WHERE stable_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS profile_group_filters (
	id                 TEXT PRIMARY KEY,
	profile_id         TEXT NOT NULL,
	provider_group_id  TEXT NOT NULL,
	decision           TEXT NOT NULL DEFAULT 'pending',
	channel_mode       TEXT NOT NULL DEFAULT 'all',
	output_name        TEXT NOT NULL DEFAULT '',
	auto_num_start     INTEGER,
	auto_num_end       INTEGER,
	track_new_channels INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profile_group_filters
	ON profile_group_filters(profile_id, provider_group_id);

CREATE TABLE IF NOT EXISTS profile_group_channel_filters (
	id                   TEXT PRIMARY KEY,
	parent_filter_id     TEXT NOT NULL,
	provider_channel_id  TEXT NOT NULL,
	output_group_name    TEXT NOT NULL DEFAULT '',
	channel_number       INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_profile_group_channel_filters
	ON profile_group_channel_filters(parent_filter_id, provider_channel_id);

CREATE TABLE IF NOT EXISTS fetch_runs (
	id                  TEXT PRIMARY KEY,
	provider_id         TEXT NOT NULL,
	type                TEXT NOT NULL,
	started             TEXT NOT NULL,
	finished            TEXT,
	status              TEXT NOT NULL DEFAULT 'running',
	bytes_playlist      INTEGER NOT NULL DEFAULT 0,
	bytes_guide         INTEGER NOT NULL DEFAULT 0,
	channel_count_seen  INTEGER NOT NULL DEFAULT 0,
	error_summary       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id                      TEXT PRIMARY KEY,
	profile_id              TEXT NOT NULL,
	created                 TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'staged',
	channel_index_path      TEXT NOT NULL DEFAULT '',
	guide_path              TEXT NOT NULL DEFAULT '',
	channel_count_published INTEGER NOT NULL DEFAULT 0,
	error_summary           TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_active
	ON snapshots(profile_id) WHERE status = 'active';
`

// Migrate applies the catalog schema. It is idempotent: running it against
// an already-initialized database is a no-op.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	return err
}
