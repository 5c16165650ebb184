package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID  = "request_id"
	FieldProviderID = "provider_id"
	FieldProfileID  = "profile_id"
	FieldFetchRunID = "fetch_run_id"
	FieldSnapshotID = "snapshot_id"
	FieldStreamKey  = "stream_key"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath         = "path"
	FieldPlaylistPath = "playlist_path"
	FieldGuidePath    = "guide_path"
)
