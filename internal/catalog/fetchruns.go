package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateFetchRun inserts a FetchRun row with status=running before the
// fetch begins (§4.4.5). A crash leaves it running rather than silently
// "fail" — that is the point of writing it before the I/O starts.
func (s *Store) CreateFetchRun(ctx context.Context, providerID string, typ FetchRunType) (string, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs (id, provider_id, type, started, status)
		VALUES (?, ?, ?, ?, 'running')`, id, providerID, string(typ), fmtTime(nowUTC()))
	if err != nil {
		return "", fmt.Errorf("catalog: create fetch run: %w", err)
	}
	return id, nil
}

// FinishFetchRun transitions a FetchRun to its terminal status with byte
// and channel counts. Called with a context independent of the run's own
// cancellation so a cancelled refresh still persists its outcome.
func (s *Store) FinishFetchRun(ctx context.Context, id string, status FetchRunStatus, bytesPlaylist, bytesGuide int64, channelCount int, errSummary string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_runs SET finished = ?, status = ?, bytes_playlist = ?, bytes_guide = ?,
		       channel_count_seen = ?, error_summary = ?
		WHERE id = ?`, fmtTime(nowUTC()), string(status), bytesPlaylist, bytesGuide, channelCount, errSummary, id)
	return err
}

// LatestFetchRun returns the most recently started FetchRun for providerID.
func (s *Store) LatestFetchRun(ctx context.Context, providerID string) (FetchRun, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_id, type, started, finished, status, bytes_playlist, bytes_guide,
		       channel_count_seen, error_summary
		FROM fetch_runs WHERE provider_id = ? ORDER BY started DESC LIMIT 1`, providerID)

	var f FetchRun
	var started, typ, status string
	var finished sql.NullString // NULL while the run is still running
	err := row.Scan(&f.ID, &f.ProviderID, &typ, &started, &finished, &status,
		&f.BytesPlaylist, &f.BytesGuide, &f.ChannelCountSeen, &f.ErrorSummary)
	if errors.Is(err, sql.ErrNoRows) {
		return FetchRun{}, false, nil
	}
	if err != nil {
		return FetchRun{}, false, fmt.Errorf("catalog: latest fetch run: %w", err)
	}
	f.Type = FetchRunType(typ)
	f.Status = FetchRunStatus(status)
	f.Started = parseTime(started)
	f.Finished = parseTime(finished.String)
	return f, true, nil
}

// FetchRunExists reports whether id refers to a row in fetch_runs — backs
// invariant 4 (every active ProviderChannel's last_fetch_run_id points at
// an existing FetchRun).
func (s *Store) FetchRunExists(ctx context.Context, id string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM fetch_runs WHERE id = ?`, id)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog: fetch run exists: %w", err)
	}
	return true, nil
}
