package sqlite

import (
	"database/sql"
	"time"

	"github.com/tally-app/tally/internal/domain"
)

// ─── Engagement Key-Value ───────────────────────────────────────────────────

// SetEngagement stores an engagement key-value pair.
func (d *DB) SetEngagement(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO engagement (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetEngagement retrieves an engagement value by key.
// Returns "" if key not found.
func (d *DB) GetEngagement(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM engagement WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// ─── Daily Blocked-Activity Map ─────────────────────────────────────────────

// SetDayActivity upserts the blocked-activity flag for a day key.
func (d *DB) SetDayActivity(dayKey string, hasBlocked bool) error {
	_, err := d.db.Exec(
		`INSERT INTO day_activity (date, has_blocked) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET has_blocked=excluded.has_blocked`,
		dayKey, hasBlocked,
	)
	return err
}

// DayActivity returns the flag for a day key. ok=false means no entry —
// "no data yet", which is not the same as false.
func (d *DB) DayActivity(dayKey string) (hasBlocked, ok bool, err error) {
	err = d.db.QueryRow(`SELECT has_blocked FROM day_activity WHERE date = ?`, dayKey).Scan(&hasBlocked)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return hasBlocked, true, nil
}

// DayActivityCount returns how many history entries exist.
func (d *DB) DayActivityCount() (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM day_activity`).Scan(&count)
	return count, err
}

// PruneDayActivity removes entries older than the given day key.
// Day keys sort lexicographically ("2006-01-02").
func (d *DB) PruneDayActivity(beforeKey string) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM day_activity WHERE date < ?`, beforeKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ─── Pet Health History ─────────────────────────────────────────────────────

// UpsertHealthEntry records a day's pet health snapshot.
func (d *DB) UpsertHealthEntry(dayKey string, score int, mood domain.PetMood) error {
	_, err := d.db.Exec(
		`INSERT INTO health_history (date, score, mood) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET score=excluded.score, mood=excluded.mood`,
		dayKey, score, string(mood),
	)
	return err
}

// HealthHistory returns recent health snapshots, newest first.
func (d *DB) HealthHistory(limit int) ([]domain.HealthEntry, error) {
	rows, err := d.db.Query(
		`SELECT date, score, mood FROM health_history ORDER BY date DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HealthEntry
	for rows.Next() {
		var e domain.HealthEntry
		var dayKey string
		if err := rows.Scan(&dayKey, &e.Score, &e.Mood); err != nil {
			return nil, err
		}
		e.Date, _ = time.ParseInLocation("2006-01-02", dayKey, time.Local)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneHealthHistory removes snapshots older than the given day key.
func (d *DB) PruneHealthHistory(beforeKey string) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM health_history WHERE date < ?`, beforeKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ─── Achievements ───────────────────────────────────────────────────────────

// UnlockAchievement records an achievement as unlocked.
// Returns false if already unlocked (idempotent).
func (d *DB) UnlockAchievement(id string, at time.Time) (bool, error) {
	result, err := d.db.Exec(
		`INSERT OR IGNORE INTO achievements (id, unlocked_at) VALUES (?, ?)`,
		id, at.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly unlocked
}

// ListUnlockedAchievements returns all unlocked achievements.
func (d *DB) ListUnlockedAchievements() ([]domain.UnlockedAchievement, error) {
	rows, err := d.db.Query(
		`SELECT id, unlocked_at FROM achievements ORDER BY unlocked_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var achievements []domain.UnlockedAchievement
	for rows.Next() {
		var a domain.UnlockedAchievement
		var unlockedAt int64
		if err := rows.Scan(&a.ID, &unlockedAt); err != nil {
			return nil, err
		}
		a.UnlockedAt = time.Unix(unlockedAt, 0)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// UnlockedAchievementCount returns the total number of unlocked achievements.
func (d *DB) UnlockedAchievementCount() (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM achievements`).Scan(&count)
	return count, err
}
