package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"lineupd/internal/log"
)

// InsertStagedSnapshot inserts a new Snapshot row with status=staged
// (§4.4.4, first step of the state machine in §4.4.6). id is caller-supplied
// so it can match the on-disk snapshot directory name.
func (s *Store) InsertStagedSnapshot(ctx context.Context, id, profileID, channelIndexPath, guidePath string, channelCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, profile_id, created, status, channel_index_path, guide_path, channel_count_published)
		VALUES (?, ?, ?, 'staged', ?, ?, ?)`, id, profileID, fmtTime(nowUTC()), channelIndexPath, guidePath, channelCount)
	if err != nil {
		return fmt.Errorf("catalog: insert staged snapshot: %w", err)
	}
	return nil
}

// PromoteSnapshot atomically archives every previously-active snapshot of
// profileID and activates id (§4.4.4, §4.4.6, §5 — no reader ever observes
// zero or two active snapshots for a profile).
func (s *Store) PromoteSnapshot(ctx context.Context, profileID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE snapshots SET status = 'archived' WHERE profile_id = ? AND status = 'active'`, profileID); err != nil {
		return fmt.Errorf("catalog: archive prior active: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE snapshots SET status = 'active' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: activate snapshot: %w", err)
	}
	return tx.Commit()
}

// ActiveSnapshot returns the current active snapshot for profileID.
func (s *Store) ActiveSnapshot(ctx context.Context, profileID string) (Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, created, status, channel_index_path, guide_path, channel_count_published, error_summary
		FROM snapshots WHERE profile_id = ? AND status = 'active' LIMIT 1`, profileID)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (Snapshot, bool, error) {
	var sn Snapshot
	var created string
	err := row.Scan(&sn.ID, &sn.ProfileID, &created, &sn.Status, &sn.ChannelIndexPath, &sn.GuidePath,
		&sn.ChannelCountPublished, &sn.ErrorSummary)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	sn.Created = parseTime(created)
	return sn, true, nil
}

// ListSnapshotsByProfile returns every snapshot of profileID ordered by
// created descending (newest first).
func (s *Store) ListSnapshotsByProfile(ctx context.Context, profileID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, created, status, channel_index_path, guide_path, channel_count_published, error_summary
		FROM snapshots WHERE profile_id = ? ORDER BY created DESC`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		var created string
		if err := rows.Scan(&sn.ID, &sn.ProfileID, &created, &sn.Status, &sn.ChannelIndexPath, &sn.GuidePath,
			&sn.ChannelCountPublished, &sn.ErrorSummary); err != nil {
			return nil, err
		}
		sn.Created = parseTime(created)
		out = append(out, sn)
	}
	return out, rows.Err()
}

// ApplyRetention keeps the newest retentionCount snapshots of profileID
// and deletes every older one, never touching the active one (§4.4.4, §8
// "Retention at count N with N+k snapshots").
func (s *Store) ApplyRetention(ctx context.Context, profileID string, retentionCount int) error {
	all, err := s.ListSnapshotsByProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if len(all) <= retentionCount {
		return nil
	}

	for _, sn := range all[retentionCount:] {
		if sn.Status == SnapshotStatus("active") {
			continue
		}
		if sn.ChannelIndexPath != "" {
			dir := snapshotDirOf(sn.ChannelIndexPath)
			if dir != "" {
				if err := os.RemoveAll(dir); err != nil {
					// Best-effort: log and continue per §9 open question.
					// The row is still deleted below, so a later sweep
					// has no record of this directory and leaves it on disk.
					log.WithComponent("catalog").Warn().Err(err).
						Str("snapshot_id", sn.ID).Str("dir", dir).
						Msg("retention: failed to remove snapshot directory")
				}
			}
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, sn.ID); err != nil {
			return fmt.Errorf("catalog: retention delete %s: %w", sn.ID, err)
		}
	}
	return nil
}

func snapshotDirOf(channelIndexPath string) string {
	// channel_index.json always sits directly in the snapshot directory.
	idx := len(channelIndexPath) - len("/channel_index.json")
	if idx <= 0 {
		return ""
	}
	return channelIndexPath[:idx]
}
