package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// IntegrityMode selects which SQLite integrity pragma VerifyIntegrity runs.
type IntegrityMode string

const (
	// IntegrityQuick runs PRAGMA quick_check: skips cross-table index
	// verification, cheap enough to run on every startup.
	IntegrityQuick IntegrityMode = "quick"
	// IntegrityFull runs PRAGMA integrity_check: exhaustive, reserved for
	// an operator-triggered check rather than the startup path.
	IntegrityFull IntegrityMode = "full"
)

// VerifyIntegrity opens path read-only and runs SQLite's built-in
// corruption check, returning the diagnostic rows if the database is
// unhealthy, or nil if it reports "ok". cmd/lineupd runs this in quick mode
// once at startup, before Migrate touches the schema, so a corrupt catalog
// file fails loudly instead of surfacing later as confusing query errors.
func VerifyIntegrity(path string, mode IntegrityMode) ([]string, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open for verification: %w", err)
	}
	defer db.Close()

	pragma := "PRAGMA quick_check;"
	if mode == IntegrityFull {
		pragma = "PRAGMA integrity_check;"
	}

	rows, err := db.Query(pragma)
	if err != nil {
		return nil, fmt.Errorf("sqlite: integrity pragma: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("sqlite: scan integrity result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: integrity rows: %w", err)
	}

	if len(results) == 1 && strings.ToLower(results[0]) == "ok" {
		return nil, nil
	}
	if len(results) == 0 {
		return []string{"no results returned from integrity check"}, nil
	}
	return results, nil
}
