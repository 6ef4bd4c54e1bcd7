package database

import (
	"database/sql"
	"fmt"
	"time"
)

// GetWatermark returns the notification watermark: the instant below
// which all victims count as already processed. ok is false when no
// cycle has ever completed.
func (db *DB) GetWatermark() (time.Time, bool, error) {
	var s string
	err := db.conn.QueryRow(
		`SELECT last_processed_time FROM notify_state WHERE id = 1`,
	).Scan(&s)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading watermark: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing watermark %q: %w", s, err)
	}
	return t, true, nil
}

// AdvanceWatermark moves the watermark forward to t. Regressions are
// clamped: the stored value is monotonically non-decreasing no matter
// what callers hand in.
func (db *DB) AdvanceWatermark(t time.Time) error {
	current, ok, err := db.GetWatermark()
	if err != nil {
		return err
	}
	if ok && !t.After(current) {
		return nil
	}

	_, err = db.conn.Exec(
		`INSERT INTO notify_state (id, last_processed_time) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_processed_time = excluded.last_processed_time`,
		t.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}
	return nil
}
