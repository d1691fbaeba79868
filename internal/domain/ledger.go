// Package domain holds the pure accountability types. No infrastructure
// dependencies; the sqlite layer maps these to and from tables.
package domain

import "time"

// CreditsFull is the weekly credit allowance. The flat accountability-fee
// model is binary: credits are either full or zero.
const CreditsFull = 7

// WeeklyPeriod is the current accountability window, Monday through Sunday.
// Exactly one period covers "now"; superseded periods are retained as
// history for reporting.
type WeeklyPeriod struct {
	ID                 string    `json:"id"`
	StartDate          time.Time `json:"start_date"`        // Monday, local midnight
	EndDate            time.Time `json:"end_date"`          // Sunday, local midnight
	CreditsRemaining   int       `json:"credits_remaining"` // clamped 0..7
	FailureCount       int       `json:"failure_count"`
	LastFailureDate    time.Time `json:"last_failure_date,omitzero"`
	LastDailyResetDate time.Time `json:"last_daily_reset_date"`
	FeePaidDate        time.Time `json:"fee_paid_date,omitzero"` // accountability fee paid this day
}

// Contains reports whether t falls inside the period's date range.
func (p WeeklyPeriod) Contains(t time.Time) bool {
	day := Today(t)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// FeeState labels the accountability-fee state machine position.
type FeeState string

const (
	FeeOK      FeeState = "ok"          // credits full, no fee pending
	FeePending FeeState = "fee_pending" // a breach today, fee unpaid
	FeePaid    FeeState = "fee_paid"    // credits restored by today's fee
)

// State derives the fee-machine position for the given time.
func (p WeeklyPeriod) State(now time.Time) FeeState {
	if !p.FeePaidDate.IsZero() && SameDay(p.FeePaidDate, now) {
		return FeePaid
	}
	if p.CreditsRemaining == 0 {
		return FeePending
	}
	return FeeOK
}

// ─── Transactions ───────────────────────────────────────────────────────────

// TxType categorizes ledger transactions.
type TxType string

const (
	TxBreach     TxType = "BREACH"      // -7, first limit breach of the day
	TxBreachFree TxType = "BREACH_FREE" // 0, subsequent same-day breach (audit only)
	TxFeePaid    TxType = "FEE_PAID"    // +7, accountability fee restores credits
)

// Transaction schema versions. Version 1 rows come from the retired
// progressive model (-1/-2/-3 per failure) and are retained read-only;
// version 2 is the flat accountability-fee model.
const (
	TxSchemaProgressive = 1
	TxSchemaFlatFee     = 2
)

// Transaction is one append-only ledger entry. Corrections are new
// entries, never edits.
type Transaction struct {
	ID            string    `json:"id"`
	PeriodID      string    `json:"period_id"`
	Timestamp     time.Time `json:"timestamp"`
	Type          TxType    `json:"type"`
	Amount        int       `json:"amount"` // credit delta, negative for charges
	GoalID        string    `json:"goal_id,omitempty"`
	Description   string    `json:"description,omitempty"`
	SchemaVersion int       `json:"schema_version"`
}

// Legacy reports whether the transaction predates the flat-fee model.
func (t Transaction) Legacy() bool { return t.SchemaVersion < TxSchemaFlatFee }
