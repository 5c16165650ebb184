package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// BackfillPendingFilters inserts a pending ProfileGroupFilter for every
// ProviderGroup of providerID not yet referenced under profileID (§4.3
// step 3) — the mechanism by which new groups surface to the operator.
func (s *Store) BackfillPendingFilters(ctx context.Context, tx *sql.Tx, providerID, profileID string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM provider_groups WHERE provider_id = ?`, providerID)
	if err != nil {
		return err
	}
	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		groupIDs = append(groupIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, gid := range groupIDs {
		row := tx.QueryRowContext(ctx, `SELECT 1 FROM profile_group_filters WHERE profile_id = ? AND provider_group_id = ?`, profileID, gid)
		var one int
		if err := row.Scan(&one); err == sql.ErrNoRows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO profile_group_filters (id, profile_id, provider_group_id, decision, channel_mode, track_new_channels)
				VALUES (?, ?, ?, 'pending', 'all', 0)`, newID(), profileID, gid)
			if err != nil {
				return fmt.Errorf("catalog: backfill filter for group %s: %w", gid, err)
			}
		} else if err != nil {
			return fmt.Errorf("catalog: lookup filter for group %s: %w", gid, err)
		}
	}
	return nil
}

// GroupFilterDecision returns the current decision for a group under a
// profile; groups with no filter row yet are treated as pending.
func (s *Store) GroupFilterDecision(ctx context.Context, tx *sql.Tx, profileID, groupID string) (FilterDecision, error) {
	row := tx.QueryRowContext(ctx, `SELECT decision FROM profile_group_filters WHERE profile_id = ? AND provider_group_id = ?`, profileID, groupID)
	var d string
	err := row.Scan(&d)
	if err == sql.ErrNoRows {
		return DecisionPending, nil
	}
	if err != nil {
		return "", err
	}
	return FilterDecision(d), nil
}

// FilterForGroup loads the full ProfileGroupFilter row for (profileID, groupID).
func (s *Store) FilterForGroup(ctx context.Context, profileID, groupID string) (ProfileGroupFilter, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, provider_group_id, decision, channel_mode, output_name,
		       auto_num_start, auto_num_end, track_new_channels
		FROM profile_group_filters WHERE profile_id = ? AND provider_group_id = ?`, profileID, groupID)

	var f ProfileGroupFilter
	var autoStart, autoEnd sql.NullInt64
	var trackInt int
	err := row.Scan(&f.ID, &f.ProfileID, &f.ProviderGroupID, &f.Decision, &f.ChannelMode, &f.OutputName,
		&autoStart, &autoEnd, &trackInt)
	if err == sql.ErrNoRows {
		return ProfileGroupFilter{}, false, nil
	}
	if err != nil {
		return ProfileGroupFilter{}, false, err
	}
	if autoStart.Valid {
		v := int(autoStart.Int64)
		f.AutoNumStart = &v
	}
	if autoEnd.Valid {
		v := int(autoEnd.Int64)
		f.AutoNumEnd = &v
	}
	f.TrackNewChannels = trackInt != 0
	return f, true, nil
}

// IncludedGroupFilters returns every filter under profileID whose decision
// is "include", joined conceptually to their ProviderGroup.
func (s *Store) IncludedGroupFilters(ctx context.Context, profileID string) ([]ProfileGroupFilter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, provider_group_id, decision, channel_mode, output_name,
		       auto_num_start, auto_num_end, track_new_channels
		FROM profile_group_filters WHERE profile_id = ? AND decision = 'include'`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfileGroupFilter
	for rows.Next() {
		var f ProfileGroupFilter
		var autoStart, autoEnd sql.NullInt64
		var trackInt int
		if err := rows.Scan(&f.ID, &f.ProfileID, &f.ProviderGroupID, &f.Decision, &f.ChannelMode, &f.OutputName,
			&autoStart, &autoEnd, &trackInt); err != nil {
			return nil, err
		}
		if autoStart.Valid {
			v := int(autoStart.Int64)
			f.AutoNumStart = &v
		}
		if autoEnd.Valid {
			v := int(autoEnd.Int64)
			f.AutoNumEnd = &v
		}
		f.TrackNewChannels = trackInt != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// ChannelOverridesForFilter returns the select-mode per-channel overrides
// belonging to one parent filter.
func (s *Store) ChannelOverridesForFilter(ctx context.Context, parentFilterID string) ([]ProfileGroupChannelFilter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_filter_id, provider_channel_id, output_group_name, channel_number
		FROM profile_group_channel_filters WHERE parent_filter_id = ?`, parentFilterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfileGroupChannelFilter
	for rows.Next() {
		var f ProfileGroupChannelFilter
		var chNum sql.NullInt64
		if err := rows.Scan(&f.ID, &f.ParentFilterID, &f.ProviderChannelID, &f.OutputGroupName, &chNum); err != nil {
			return nil, err
		}
		if chNum.Valid {
			v := int(chNum.Int64)
			f.ChannelNumber = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
