package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tally-app/tally/internal/domain"
)

// ─── Goal Repository ────────────────────────────────────────────────────────

// UpsertGoal inserts or updates a goal record, keyed by app identifier.
func (d *DB) UpsertGoal(g domain.Goal) error {
	_, err := d.db.Exec(
		`INSERT INTO goals (id, app_identifier, display_name, base_daily_limit, is_active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(app_identifier) DO UPDATE SET
			display_name=excluded.display_name,
			base_daily_limit=excluded.base_daily_limit,
			is_active=excluded.is_active,
			updated_at=excluded.updated_at`,
		g.ID, g.AppIdentifier, g.DisplayName, g.BaseDailyLimit, g.IsActive, g.UpdatedAt.Unix(),
	)
	return err
}

// GoalByApp retrieves a goal by its opaque app identifier.
// Returns nil (no error) when absent — "no limit configured".
func (d *DB) GoalByApp(appIdentifier string) (*domain.Goal, error) {
	row := d.db.QueryRow(
		`SELECT id, app_identifier, display_name, base_daily_limit, is_active, updated_at
		 FROM goals WHERE app_identifier = ?`, appIdentifier,
	)
	return scanGoal(row)
}

// ListGoals returns goals, optionally only active ones.
func (d *DB) ListGoals(activeOnly bool) ([]domain.Goal, error) {
	q := `SELECT id, app_identifier, display_name, base_daily_limit, is_active, updated_at
	      FROM goals ORDER BY display_name`
	if activeOnly {
		q = `SELECT id, app_identifier, display_name, base_daily_limit, is_active, updated_at
		     FROM goals WHERE is_active = 1 ORDER BY display_name`
	}
	rows, err := d.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// SetBaseLimit updates a goal's base daily limit.
func (d *DB) SetBaseLimit(appIdentifier string, minutes int, at time.Time) error {
	res, err := d.db.Exec(
		`UPDATE goals SET base_daily_limit = ?, updated_at = ? WHERE app_identifier = ?`,
		minutes, at.Unix(), appIdentifier,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrGoalNotFound
	}
	return nil
}

// SetGoalActive soft-deletes or restores a goal.
func (d *DB) SetGoalActive(appIdentifier string, active bool, at time.Time) error {
	res, err := d.db.Exec(
		`UPDATE goals SET is_active = ?, updated_at = ? WHERE app_identifier = ?`,
		active, at.Unix(), appIdentifier,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrGoalNotFound
	}
	return nil
}

func scanGoal(s scanner) (*domain.Goal, error) {
	var g domain.Goal
	var updatedAt int64
	err := s.Scan(&g.ID, &g.AppIdentifier, &g.DisplayName, &g.BaseDailyLimit, &g.IsActive, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	g.UpdatedAt = time.Unix(updatedAt, 0)
	return &g, nil
}

// ─── Usage Records ──────────────────────────────────────────────────────────

// UpsertUsage creates or updates the single usage record for (goal, day).
func (d *DB) UpsertUsage(rec domain.UsageRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO usage_records (id, goal_id, date, actual_minutes, did_exceed, extended_limit)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(goal_id, date) DO UPDATE SET
			actual_minutes=excluded.actual_minutes,
			did_exceed=excluded.did_exceed,
			extended_limit=excluded.extended_limit`,
		rec.ID, rec.GoalID, domain.Today(rec.Date).Unix(),
		rec.ActualMinutes, rec.DidExceedLimit, rec.ExtendedLimit,
	)
	return err
}

// UsageFor returns the usage record for (goal, day), or nil when the
// enforcement collaborator has not reported anything yet.
func (d *DB) UsageFor(goalID string, day time.Time) (*domain.UsageRecord, error) {
	row := d.db.QueryRow(
		`SELECT id, goal_id, date, actual_minutes, did_exceed, extended_limit
		 FROM usage_records WHERE goal_id = ? AND date = ?`,
		goalID, domain.Today(day).Unix(),
	)
	return scanUsage(row)
}

// UsageForDay returns all usage records for a day.
func (d *DB) UsageForDay(day time.Time) ([]domain.UsageRecord, error) {
	rows, err := d.db.Query(
		`SELECT id, goal_id, date, actual_minutes, did_exceed, extended_limit
		 FROM usage_records WHERE date = ?`, domain.Today(day).Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.UsageRecord
	for rows.Next() {
		r, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *r)
	}
	return recs, rows.Err()
}

func scanUsage(s scanner) (*domain.UsageRecord, error) {
	var r domain.UsageRecord
	var date int64
	err := s.Scan(&r.ID, &r.GoalID, &date, &r.ActualMinutes, &r.DidExceedLimit, &r.ExtendedLimit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan usage: %w", err)
	}
	r.Date = time.Unix(date, 0)
	return &r, nil
}
