package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the single-writer handle onto the Catalog Store. Refresh-scoped
// tables (groups, channels, fetch_runs, snapshots) are written only by the
// Reconciler and Snapshot Builder through this type; providers, profiles,
// and filters may be written concurrently by the external admin surface.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for callers that need to share a
// pool (e.g. tests seeding provider and profile rows directly).
func (s *Store) DB() *sql.DB { return s.db }

func newID() string { return uuid.NewString() }

func nowUTC() time.Time { return time.Now().UTC() }

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ActiveEnabledProvider returns the unique provider with is_active=true and
// enabled=true, or (Provider{}, false, nil) if none exists (§4.4.1 — the
// Snapshot Builder treats absence as a no-op, not an error).
func (s *Store) ActiveEnabledProvider(ctx context.Context) (Provider, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, playlist_url, guide_url, headers_json, user_agent,
		       timeout_seconds, enabled, is_active, include_vod, include_series
		FROM providers WHERE is_active = 1 AND enabled = 1 LIMIT 1`)

	var p Provider
	var headersJSON string
	var enabledInt, activeInt, vodInt, seriesInt int
	err := row.Scan(&p.ID, &p.Name, &p.PlaylistURL, &p.GuideURL, &headersJSON, &p.UserAgent,
		&p.TimeoutSeconds, &enabledInt, &activeInt, &vodInt, &seriesInt)
	if err == sql.ErrNoRows {
		return Provider{}, false, nil
	}
	if err != nil {
		return Provider{}, false, fmt.Errorf("catalog: active provider query: %w", err)
	}
	p.Enabled = enabledInt != 0
	p.IsActive = activeInt != 0
	p.IncludeVOD = vodInt != 0
	p.IncludeSeries = seriesInt != 0
	if headersJSON != "" {
		_ = json.Unmarshal([]byte(headersJSON), &p.Headers)
	}
	return p, true, nil
}

// GetProvider loads one provider by id.
func (s *Store) GetProvider(ctx context.Context, id string) (Provider, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, playlist_url, guide_url, headers_json, user_agent,
		       timeout_seconds, enabled, is_active, include_vod, include_series
		FROM providers WHERE id = ?`, id)

	var p Provider
	var headersJSON string
	var enabledInt, activeInt, vodInt, seriesInt int
	err := row.Scan(&p.ID, &p.Name, &p.PlaylistURL, &p.GuideURL, &headersJSON, &p.UserAgent,
		&p.TimeoutSeconds, &enabledInt, &activeInt, &vodInt, &seriesInt)
	if err != nil {
		return Provider{}, fmt.Errorf("catalog: get provider: %w", err)
	}
	p.Enabled = enabledInt != 0
	p.IsActive = activeInt != 0
	p.IncludeVOD = vodInt != 0
	p.IncludeSeries = seriesInt != 0
	if headersJSON != "" {
		_ = json.Unmarshal([]byte(headersJSON), &p.Headers)
	}
	return p, nil
}

// SetActiveProvider performs the two-step write mandated by §5: clearing
// every other provider's is_active flag, then setting the target, as two
// separate statements. A partial unique index on is_active is evaluated
// per-statement, so combining both writes into a single UPDATE that
// toggles two rows at once would conflict transiently.
func (s *Store) SetActiveProvider(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE providers SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("catalog: clear active provider: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE providers SET is_active = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: set active provider: %w", err)
	}
	return tx.Commit()
}

// EnabledProfileForProvider returns the enabled profile with lowest
// priority in its association with providerID (§4.4.1).
func (s *Store) EnabledProfileForProvider(ctx context.Context, providerID string) (Profile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.output_name, p.enabled
		FROM profiles p
		JOIN profile_providers pp ON pp.profile_id = p.id
		WHERE pp.provider_id = ? AND pp.enabled = 1 AND p.enabled = 1
		ORDER BY pp.priority ASC
		LIMIT 1`, providerID)

	var pr Profile
	var enabledInt int
	err := row.Scan(&pr.ID, &pr.Name, &pr.OutputName, &enabledInt)
	if err == sql.ErrNoRows {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("catalog: enabled profile query: %w", err)
	}
	pr.Enabled = enabledInt != 0
	return pr, true, nil
}

// ListEnabledProfiles returns every enabled profile, used by the status endpoint to
// enumerate lineups regardless of which provider currently backs them.
func (s *Store) ListEnabledProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, output_name, enabled FROM profiles WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var pr Profile
		var enabledInt int
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.OutputName, &enabledInt); err != nil {
			return nil, err
		}
		pr.Enabled = enabledInt != 0
		out = append(out, pr)
	}
	return out, rows.Err()
}
