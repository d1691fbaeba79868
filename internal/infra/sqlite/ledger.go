package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tally-app/tally/internal/domain"
)

// ─── Weekly Periods ─────────────────────────────────────────────────────────

// CurrentPeriod returns the non-superseded period, or nil if none exists.
func (d *DB) CurrentPeriod() (*domain.WeeklyPeriod, error) {
	row := d.db.QueryRow(
		`SELECT id, start_date, end_date, credits, failure_count, last_failure, last_daily_reset, fee_paid
		 FROM periods WHERE superseded = 0 ORDER BY start_date DESC LIMIT 1`,
	)
	return scanPeriod(row)
}

// InsertPeriod creates a new period record.
func (d *DB) InsertPeriod(p domain.WeeklyPeriod) error {
	_, err := d.db.Exec(
		`INSERT INTO periods (id, start_date, end_date, credits, failure_count, last_failure, last_daily_reset, fee_paid, superseded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		p.ID, p.StartDate.Unix(), p.EndDate.Unix(), p.CreditsRemaining, p.FailureCount,
		nullableUnix(p.LastFailureDate), p.LastDailyResetDate.Unix(), nullableUnix(p.FeePaidDate),
	)
	return err
}

// UpdatePeriod persists the mutable fields of a period.
func (d *DB) UpdatePeriod(p domain.WeeklyPeriod) error {
	_, err := d.db.Exec(
		`UPDATE periods SET start_date = ?, end_date = ?, credits = ?, failure_count = ?,
			last_failure = ?, last_daily_reset = ?, fee_paid = ?
		 WHERE id = ?`,
		p.StartDate.Unix(), p.EndDate.Unix(), p.CreditsRemaining, p.FailureCount,
		nullableUnix(p.LastFailureDate), p.LastDailyResetDate.Unix(), nullableUnix(p.FeePaidDate),
		p.ID,
	)
	return err
}

// SupersedePeriod freezes a period as history when a new week begins.
func (d *DB) SupersedePeriod(id string) error {
	_, err := d.db.Exec(`UPDATE periods SET superseded = 1 WHERE id = ?`, id)
	return err
}

// ListPeriods returns periods newest-first, the current one included.
func (d *DB) ListPeriods(limit int) ([]domain.WeeklyPeriod, error) {
	rows, err := d.db.Query(
		`SELECT id, start_date, end_date, credits, failure_count, last_failure, last_daily_reset, fee_paid
		 FROM periods ORDER BY start_date DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []domain.WeeklyPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func scanPeriod(s scanner) (*domain.WeeklyPeriod, error) {
	var p domain.WeeklyPeriod
	var start, end, lastReset int64
	var lastFailure, feePaid sql.NullInt64

	err := s.Scan(&p.ID, &start, &end, &p.CreditsRemaining, &p.FailureCount,
		&lastFailure, &lastReset, &feePaid)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, fmt.Errorf("scan period: %w", err)
	}

	p.StartDate = time.Unix(start, 0)
	p.EndDate = time.Unix(end, 0)
	p.LastDailyResetDate = time.Unix(lastReset, 0)
	p.LastFailureDate = unixOrZero(lastFailure)
	p.FeePaidDate = unixOrZero(feePaid)
	return &p, nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// InsertTransaction appends a ledger transaction. The table is
// append-only: there is no update or delete path.
func (d *DB) InsertTransaction(tx domain.Transaction) error {
	_, err := d.db.Exec(
		`INSERT INTO transactions (id, period_id, timestamp, type, amount, goal_id, description, schema_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.PeriodID, tx.Timestamp.Unix(), string(tx.Type), tx.Amount,
		nullStr(tx.GoalID), nullStr(tx.Description), tx.SchemaVersion,
	)
	return err
}

// ListTransactions returns recent transactions, newest first. An empty
// periodID returns transactions across all periods.
func (d *DB) ListTransactions(periodID string, limit int) ([]domain.Transaction, error) {
	var rows *sql.Rows
	var err error
	if periodID == "" {
		rows, err = d.db.Query(
			`SELECT id, period_id, timestamp, type, amount, goal_id, description, schema_version
			 FROM transactions ORDER BY timestamp DESC LIMIT ?`, limit)
	} else {
		rows, err = d.db.Query(
			`SELECT id, period_id, timestamp, type, amount, goal_id, description, schema_version
			 FROM transactions WHERE period_id = ? ORDER BY timestamp DESC LIMIT ?`, periodID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var ts int64
		var goalID, desc sql.NullString
		if err := rows.Scan(&tx.ID, &tx.PeriodID, &ts, &tx.Type, &tx.Amount,
			&goalID, &desc, &tx.SchemaVersion); err != nil {
			return nil, err
		}
		tx.Timestamp = time.Unix(ts, 0)
		tx.GoalID = goalID.String
		tx.Description = desc.String
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CountTransactions counts transactions of a type across all periods.
func (d *DB) CountTransactions(txType domain.TxType) (int, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE type = ?`, string(txType),
	).Scan(&count)
	return count, err
}

// MigrateLegacyTransactions stamps schema versions onto rows written
// before versioning existed. Progressive-model charges (amounts -1..-6)
// become version 1; everything else is already flat-fee shaped and
// becomes version 2. Returns the number of rows touched. Idempotent:
// stamped rows are never revisited.
func (d *DB) MigrateLegacyTransactions() (int64, error) {
	res, err := d.db.Exec(
		`UPDATE transactions SET schema_version = ?, description = COALESCE(NULLIF(description, ''), 'legacy_progressive')
		 WHERE schema_version = 0 AND amount < 0 AND amount > ?`,
		domain.TxSchemaProgressive, -domain.CreditsFull,
	)
	if err != nil {
		return 0, err
	}
	progressive, _ := res.RowsAffected()

	res, err = d.db.Exec(
		`UPDATE transactions SET schema_version = ? WHERE schema_version = 0`,
		domain.TxSchemaFlatFee,
	)
	if err != nil {
		return progressive, err
	}
	flat, _ := res.RowsAffected()
	return progressive + flat, nil
}
