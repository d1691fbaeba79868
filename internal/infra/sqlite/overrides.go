package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tally-app/tally/internal/domain"
)

// ─── Override Repository ────────────────────────────────────────────────────
// The override record for a goal is assembled from three tables but read
// and written through this one surface, so callers see a single typed
// unit rather than a sprawl of independently-evolving keys.

// OverridesFor assembles the full override set for a goal.
func (d *DB) OverridesFor(goalID string) (domain.OverrideSet, error) {
	set := domain.OverrideSet{GoalID: goalID}

	rows, err := d.db.Query(
		`SELECT id, goal_id, minutes, granted_at, expires_at
		 FROM extensions WHERE goal_id = ? ORDER BY granted_at`, goalID,
	)
	if err != nil {
		return set, err
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.Extension
		var granted int64
		var expires sql.NullInt64
		if err := rows.Scan(&e.ID, &e.GoalID, &e.Minutes, &granted, &expires); err != nil {
			return set, fmt.Errorf("scan extension: %w", err)
		}
		e.GrantedAt = time.Unix(granted, 0)
		e.ExpiresAt = unixOrZero(expires)
		set.Extensions = append(set.Extensions, e)
	}
	if err := rows.Err(); err != nil {
		return set, err
	}

	r, err := d.restrictionFor(goalID)
	if err != nil {
		return set, err
	}
	set.Restriction = r

	m, err := d.sessionModeFor(goalID)
	if err != nil {
		return set, err
	}
	set.Session = m

	return set, nil
}

// InsertExtension records a new limit extension.
func (d *DB) InsertExtension(e domain.Extension) error {
	_, err := d.db.Exec(
		`INSERT INTO extensions (id, goal_id, minutes, granted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.GoalID, e.Minutes, e.GrantedAt.Unix(), nullableUnix(e.ExpiresAt),
	)
	return err
}

// DeleteElapsedExtensions removes extensions no longer active at now:
// absolute expiries in the past, and "today" grants from earlier days.
func (d *DB) DeleteElapsedExtensions(now time.Time) (int64, error) {
	res, err := d.db.Exec(
		`DELETE FROM extensions
		 WHERE (expires_at IS NOT NULL AND expires_at <= ?)
		    OR (expires_at IS NULL AND granted_at < ?)`,
		now.Unix(), domain.Today(now).Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetRestriction replaces the goal's restriction window.
func (d *DB) SetRestriction(r domain.RestrictionWindow) error {
	_, err := d.db.Exec(
		`INSERT INTO restrictions (goal_id, period, limit_minutes, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(goal_id) DO UPDATE SET
			period=excluded.period,
			limit_minutes=excluded.limit_minutes,
			start_date=excluded.start_date,
			end_date=excluded.end_date`,
		r.GoalID, string(r.Period), r.Limit, r.StartDate.Unix(), nullableUnix(r.EndDate),
	)
	return err
}

// DeleteRestriction removes the goal's restriction window.
func (d *DB) DeleteRestriction(goalID string) error {
	_, err := d.db.Exec(`DELETE FROM restrictions WHERE goal_id = ?`, goalID)
	return err
}

// DeleteExpiredRestrictions purges weekly and one-time windows past
// their end date.
func (d *DB) DeleteExpiredRestrictions(now time.Time) (int64, error) {
	res, err := d.db.Exec(
		`DELETE FROM restrictions
		 WHERE period != ? AND end_date IS NOT NULL AND end_date < ?`,
		string(domain.RestrictDaily), now.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) restrictionFor(goalID string) (*domain.RestrictionWindow, error) {
	row := d.db.QueryRow(
		`SELECT goal_id, period, limit_minutes, start_date, end_date
		 FROM restrictions WHERE goal_id = ?`, goalID,
	)
	var r domain.RestrictionWindow
	var start int64
	var end sql.NullInt64
	err := row.Scan(&r.GoalID, &r.Period, &r.Limit, &start, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan restriction: %w", err)
	}
	r.StartDate = time.Unix(start, 0)
	r.EndDate = unixOrZero(end)
	return &r, nil
}

// SetSessionMode replaces the goal's session mode. The primary key
// guarantees at most one active mode per goal.
func (d *DB) SetSessionMode(m domain.SessionMode) error {
	_, err := d.db.Exec(
		`INSERT INTO session_modes (goal_id, mode, activated_at, expires_at, minutes)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(goal_id) DO UPDATE SET
			mode=excluded.mode,
			activated_at=excluded.activated_at,
			expires_at=excluded.expires_at,
			minutes=excluded.minutes`,
		m.GoalID, string(m.Kind), m.ActivatedAt.Unix(), nullableUnix(m.ExpiresAt), m.Minutes,
	)
	return err
}

// ClearSessionMode removes the goal's session mode.
func (d *DB) ClearSessionMode(goalID string) error {
	_, err := d.db.Exec(`DELETE FROM session_modes WHERE goal_id = ?`, goalID)
	return err
}

// DeleteExpiredSessionModes purges extra-time modes past expiry.
// One-session modes never time out — they end on app close.
func (d *DB) DeleteExpiredSessionModes(now time.Time) (int64, error) {
	res, err := d.db.Exec(
		`DELETE FROM session_modes
		 WHERE mode = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(domain.SessionExtraTime), now.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) sessionModeFor(goalID string) (*domain.SessionMode, error) {
	row := d.db.QueryRow(
		`SELECT goal_id, mode, activated_at, expires_at, minutes
		 FROM session_modes WHERE goal_id = ?`, goalID,
	)
	var m domain.SessionMode
	var activated int64
	var expires sql.NullInt64
	err := row.Scan(&m.GoalID, &m.Kind, &activated, &expires, &m.Minutes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session mode: %w", err)
	}
	m.ActivatedAt = time.Unix(activated, 0)
	m.ExpiresAt = unixOrZero(expires)
	return &m, nil
}
