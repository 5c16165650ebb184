package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertGroup inserts a new ProviderGroup or updates an existing one by
// (provider_id, raw_name) — step 1 of the Reconciler's ordered sequence.
func (s *Store) UpsertGroup(ctx context.Context, tx *sql.Tx, providerID, rawName string, count int, contentType ContentType, now string) (string, error) {
	row := tx.QueryRowContext(ctx, `SELECT id FROM provider_groups WHERE provider_id = ? AND raw_name = ?`, providerID, rawName)
	var id string
	err := row.Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = newID()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO provider_groups (id, provider_id, raw_name, first_seen, last_seen, active, channel_count, content_type)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)`, id, providerID, rawName, now, now, count, string(contentType))
		if err != nil {
			return "", fmt.Errorf("catalog: insert group: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("catalog: lookup group: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE provider_groups SET last_seen = ?, active = 1, channel_count = ?, content_type = ? WHERE id = ?`,
			now, count, string(contentType), id)
		if err != nil {
			return "", fmt.Errorf("catalog: update group: %w", err)
		}
	}
	return id, nil
}

// DeactivateGroupsAbsent marks active=false, channel_count=0 for any group
// of providerID whose raw name is not in seenNames (§4.3 step 2). Rows are
// never deleted.
func (s *Store) DeactivateGroupsAbsent(ctx context.Context, tx *sql.Tx, providerID string, seenNames map[string]bool) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, raw_name FROM provider_groups WHERE provider_id = ? AND active = 1`, providerID)
	if err != nil {
		return err
	}
	type rec struct{ id, name string }
	var toDeactivate []rec
	for rows.Next() {
		var r rec
		if err := rows.Scan(&r.id, &r.name); err != nil {
			rows.Close()
			return err
		}
		if !seenNames[r.name] {
			toDeactivate = append(toDeactivate, r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range toDeactivate {
		if _, err := tx.ExecContext(ctx, `UPDATE provider_groups SET active = 0, channel_count = 0 WHERE id = ?`, r.id); err != nil {
			return fmt.Errorf("catalog: deactivate group %s: %w", r.id, err)
		}
	}
	return nil
}

// ListGroupsByProvider returns every ProviderGroup row for providerID.
func (s *Store) ListGroupsByProvider(ctx context.Context, providerID string) ([]ProviderGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, raw_name, first_seen, last_seen, active, channel_count, content_type
		FROM provider_groups WHERE provider_id = ?`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderGroup
	for rows.Next() {
		var g ProviderGroup
		var firstSeen, lastSeen string
		var activeInt int
		var contentType string
		if err := rows.Scan(&g.ID, &g.ProviderID, &g.RawName, &firstSeen, &lastSeen, &activeInt, &g.ChannelCount, &contentType); err != nil {
			return nil, err
		}
		g.FirstSeen = parseTime(firstSeen)
		g.LastSeen = parseTime(lastSeen)
		g.Active = activeInt != 0
		g.ContentType = ContentType(contentType)
		out = append(out, g)
	}
	return out, rows.Err()
}
