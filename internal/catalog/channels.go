package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertChannel inserts a new ProviderChannel or refreshes an existing one
// keyed by stable key (§4.3 step 4).
func (s *Store) UpsertChannel(ctx context.Context, tx *sql.Tx, providerID string, ch ProviderChannel, now, fetchRunID string) error {
	row := tx.QueryRowContext(ctx, `SELECT id FROM provider_channels WHERE provider_id = ? AND stable_key = ?`, providerID, ch.StableKey)
	var id string
	err := row.Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = newID()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO provider_channels (
				id, provider_id, stable_key, display_name, tvg_id, tvg_name, logo,
				stream_url, group_raw_name, group_id, content_type,
				first_seen, last_seen, active, last_fetch_run_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			id, providerID, ch.StableKey, ch.DisplayName, ch.TvgID, ch.TvgName, ch.Logo,
			ch.StreamURL, ch.GroupRawName, ch.GroupID, string(ch.ContentType),
			now, now, fetchRunID)
		if err != nil {
			return fmt.Errorf("catalog: insert channel: %w", err)
		}
	case err != nil:
		return fmt.Errorf("catalog: lookup channel: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE provider_channels SET
				display_name = ?, tvg_id = ?, tvg_name = ?, logo = ?, stream_url = ?,
				group_raw_name = ?, group_id = ?, content_type = ?,
				last_seen = ?, active = 1, last_fetch_run_id = ?
			WHERE id = ?`,
			ch.DisplayName, ch.TvgID, ch.TvgName, ch.Logo, ch.StreamURL,
			ch.GroupRawName, ch.GroupID, string(ch.ContentType),
			now, fetchRunID, id)
		if err != nil {
			return fmt.Errorf("catalog: update channel: %w", err)
		}
	}
	return nil
}

// DeactivateChannelsAbsent marks active=false for any channel of providerID
// whose stable key was not observed this fetch (§4.3 step 5).
func (s *Store) DeactivateChannelsAbsent(ctx context.Context, tx *sql.Tx, providerID string, seenKeys map[string]bool) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, stable_key FROM provider_channels WHERE provider_id = ? AND active = 1`, providerID)
	if err != nil {
		return err
	}
	type rec struct{ id, key string }
	var toDeactivate []rec
	for rows.Next() {
		var r rec
		if err := rows.Scan(&r.id, &r.key); err != nil {
			rows.Close()
			return err
		}
		if !seenKeys[r.key] {
			toDeactivate = append(toDeactivate, r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, r := range toDeactivate {
		if _, err := tx.ExecContext(ctx, `UPDATE provider_channels SET active = 0 WHERE id = ?`, r.id); err != nil {
			return fmt.Errorf("catalog: deactivate channel %s: %w", r.id, err)
		}
	}
	return nil
}

// ActiveChannelsForPublish returns channels eligible by provider-level
// content-type flags (§4.4.1): live always, vod/series gated by the
// provider's include flags.
func (s *Store) ActiveChannelsForPublish(ctx context.Context, providerID string, includeVOD, includeSeries bool) ([]ProviderChannel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, stable_key, display_name, tvg_id, tvg_name, logo,
		       stream_url, group_raw_name, group_id, content_type,
		       first_seen, last_seen, active, last_fetch_run_id
		FROM provider_channels WHERE provider_id = ? AND active = 1`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderChannel
	for rows.Next() {
		var c ProviderChannel
		var firstSeen, lastSeen string
		var activeInt int
		var contentType string
		var stableKey sql.NullString
		if err := rows.Scan(&c.ID, &c.ProviderID, &stableKey, &c.DisplayName, &c.TvgID, &c.TvgName, &c.Logo,
			&c.StreamURL, &c.GroupRawName, &c.GroupID, &contentType,
			&firstSeen, &lastSeen, &activeInt, &c.LastFetchRunID); err != nil {
			return nil, err
		}
		c.StableKey = stableKey.String
		c.FirstSeen = parseTime(firstSeen)
		c.LastSeen = parseTime(lastSeen)
		c.Active = activeInt != 0
		c.ContentType = ContentType(contentType)

		switch c.ContentType {
		case ContentLive:
			out = append(out, c)
		case ContentVOD:
			if includeVOD {
				out = append(out, c)
			}
		case ContentSeries:
			if includeSeries {
				out = append(out, c)
			}
		}
	}
	return out, rows.Err()
}
