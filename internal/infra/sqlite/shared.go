package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// ─── Shared Cross-Process State ─────────────────────────────────────────────
// The enforcement collaborator runs as a separate OS process and writes
// raw usage numbers into this region. Semantics are last-writer-wins with
// no transactional guarantees across the boundary, so every read reports
// whether a value was present at all: absent means "no data yet", which
// callers must not conflate with zero.

// SetShared stores a raw shared value.
func (d *DB) SetShared(key, value string, at time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO shared_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, at.Unix(),
	)
	return err
}

// GetShared retrieves a raw shared value. ok=false means absent.
func (d *DB) GetShared(key string) (value string, ok bool, err error) {
	err = d.db.QueryRow(`SELECT value FROM shared_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// LastSharedUpdate returns the newest write timestamp in the region, or
// zero time if nothing has been written yet. Used by the health checker
// to detect a stalled usage feed.
func (d *DB) LastSharedUpdate() (time.Time, error) {
	var ts sql.NullInt64
	err := d.db.QueryRow(`SELECT MAX(updated_at) FROM shared_state`).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	return unixOrZero(ts), nil
}

// ─── Typed Accessors ────────────────────────────────────────────────────────

func sharedInt(d *DB, key string) (int, bool, error) {
	raw, ok, err := d.GetShared(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("shared key %s: %w", key, err)
	}
	return n, true, nil
}

// SetDailyScreenTime records the day's total screen minutes.
func (d *DB) SetDailyScreenTime(dayKey string, minutes int, at time.Time) error {
	return d.SetShared("screen_time:"+dayKey, strconv.Itoa(minutes), at)
}

// DailyScreenTime returns the day's total screen minutes.
func (d *DB) DailyScreenTime(dayKey string) (int, bool, error) {
	return sharedInt(d, "screen_time:"+dayKey)
}

// SetAppUsage records per-app minutes for a day.
func (d *DB) SetAppUsage(dayKey, appIdentifier string, minutes int, at time.Time) error {
	return d.SetShared("app_usage:"+dayKey+":"+appIdentifier, strconv.Itoa(minutes), at)
}

// AppUsage returns per-app minutes for a day.
func (d *DB) AppUsage(dayKey, appIdentifier string) (int, bool, error) {
	return sharedInt(d, "app_usage:"+dayKey+":"+appIdentifier)
}

// IncrPuzzlesSolved bumps the day's puzzle-solved count and returns it.
func (d *DB) IncrPuzzlesSolved(dayKey string, at time.Time) (int, error) {
	n, _, err := sharedInt(d, "puzzles:"+dayKey)
	if err != nil {
		return 0, err
	}
	n++
	return n, d.SetShared("puzzles:"+dayKey, strconv.Itoa(n), at)
}

// PuzzlesSolved returns the day's puzzle-solved count (0 when absent —
// a count, not a gated signal).
func (d *DB) PuzzlesSolved(dayKey string) (int, error) {
	n, _, err := sharedInt(d, "puzzles:"+dayKey)
	return n, err
}

// SetPendingLimitChange stages a limit change the enforcement
// collaborator applies at the next day boundary.
func (d *DB) SetPendingLimitChange(goalID string, minutes int, at time.Time) error {
	return d.SetShared("pending_limit:"+goalID, strconv.Itoa(minutes), at)
}

// PendingLimitChange reads a staged limit change and when it was staged.
func (d *DB) PendingLimitChange(goalID string) (int, time.Time, bool, error) {
	var value string
	var ts int64
	err := d.db.QueryRow(
		`SELECT value, updated_at FROM shared_state WHERE key = ?`,
		"pending_limit:"+goalID,
	).Scan(&value, &ts)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("pending limit for %s: %w", goalID, err)
	}
	return n, time.Unix(ts, 0), true, nil
}

// ClearPendingLimitChange removes a staged limit change.
func (d *DB) ClearPendingLimitChange(goalID string) error {
	_, err := d.db.Exec(`DELETE FROM shared_state WHERE key = ?`, "pending_limit:"+goalID)
	return err
}

// PruneShared drops per-day shared keys older than the given day key.
func (d *DB) PruneShared(beforeKey string) (int64, error) {
	res, err := d.db.Exec(
		`DELETE FROM shared_state
		 WHERE (key LIKE 'screen_time:%' AND substr(key, 13) < ?)
		    OR (key LIKE 'puzzles:%' AND substr(key, 9, 10) < ?)
		    OR (key LIKE 'app_usage:%' AND substr(key, 11, 10) < ?)`,
		beforeKey, beforeKey, beforeKey,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
