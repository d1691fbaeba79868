package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// wednesday is a mid-week anchor so both day and week crossings can be
// exercised from it.
var wednesday = time.Date(2025, 6, 11, 10, 0, 0, 0, time.Local)

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: wednesday}
	svc, err := NewService(newTestDB(t), clock, nil)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc, clock
}

// ─── Period Lifecycle ───────────────────────────────────────────────────────

func TestService_FreshPeriod(t *testing.T) {
	svc, clock := newTestService(t)

	p, err := svc.CurrentPeriod()
	if err != nil {
		t.Fatalf("CurrentPeriod() error: %v", err)
	}
	if p.CreditsRemaining != domain.CreditsFull {
		t.Errorf("fresh credits = %d, want %d", p.CreditsRemaining, domain.CreditsFull)
	}
	if p.StartDate.Weekday() != time.Monday {
		t.Errorf("period starts on %s, want Monday", p.StartDate.Weekday())
	}
	if !p.Contains(clock.now) {
		t.Error("fresh period should contain now")
	}
	if state := p.State(clock.now); state != domain.FeeOK {
		t.Errorf("fresh state = %s, want %s", state, domain.FeeOK)
	}
}

func TestService_NormalizeIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	p1, err := svc.CurrentPeriod()
	if err != nil {
		t.Fatalf("CurrentPeriod() error: %v", err)
	}
	p2, err := svc.CurrentPeriod()
	if err != nil {
		t.Fatalf("second CurrentPeriod() error: %v", err)
	}
	if p1.ID != p2.ID {
		t.Errorf("repeated reads changed period: %s vs %s", p1.ID, p2.ID)
	}
	if !p1.LastDailyResetDate.Equal(p2.LastDailyResetDate) {
		t.Error("repeated reads moved the daily reset marker")
	}
}

// ─── Breaches ───────────────────────────────────────────────────────────────

func TestService_BreachChargesFullBalance(t *testing.T) {
	svc, _ := newTestService(t)

	tx, err := svc.ReportBreach("goal-1")
	if err != nil {
		t.Fatalf("ReportBreach() error: %v", err)
	}
	if tx.Type != domain.TxBreach {
		t.Errorf("tx type = %s, want %s", tx.Type, domain.TxBreach)
	}
	if tx.Amount != -domain.CreditsFull {
		t.Errorf("tx amount = %d, want %d", tx.Amount, -domain.CreditsFull)
	}

	p, _ := svc.CurrentPeriod()
	if p.CreditsRemaining != 0 {
		t.Errorf("credits after breach = %d, want 0", p.CreditsRemaining)
	}
	if p.FailureCount != 1 {
		t.Errorf("failure count = %d, want 1", p.FailureCount)
	}
}

func TestService_SecondBreachSameDayIsFree(t *testing.T) {
	svc, clock := newTestService(t)

	svc.ReportBreach("goal-1")
	clock.now = clock.now.Add(2 * time.Hour)

	tx, err := svc.ReportBreach("goal-2")
	if err != nil {
		t.Fatalf("second ReportBreach() error: %v", err)
	}
	if tx.Type != domain.TxBreachFree {
		t.Errorf("second tx type = %s, want %s", tx.Type, domain.TxBreachFree)
	}
	if tx.Amount != 0 {
		t.Errorf("second tx amount = %d, want 0", tx.Amount)
	}

	p, _ := svc.CurrentPeriod()
	if p.FailureCount != 1 {
		t.Errorf("failure count after free breach = %d, want 1", p.FailureCount)
	}
}

func TestService_BreachAfterFeePaidIsFree(t *testing.T) {
	svc, clock := newTestService(t)

	svc.ReportBreach("goal-1")
	if _, err := svc.PayFee(); err != nil {
		t.Fatalf("PayFee() error: %v", err)
	}
	clock.now = clock.now.Add(time.Hour)

	tx, err := svc.ReportBreach("goal-1")
	if err != nil {
		t.Fatalf("ReportBreach() after fee error: %v", err)
	}
	if tx.Type != domain.TxBreachFree {
		t.Errorf("post-fee breach type = %s, want %s", tx.Type, domain.TxBreachFree)
	}

	p, _ := svc.CurrentPeriod()
	if p.CreditsRemaining != domain.CreditsFull {
		t.Errorf("credits after paid fee = %d, want %d", p.CreditsRemaining, domain.CreditsFull)
	}
}

// ─── Fee State Machine ──────────────────────────────────────────────────────

func TestService_PayFeeWithoutPending(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.PayFee(); err != domain.ErrNoFeePending {
		t.Errorf("PayFee() with full credits = %v, want ErrNoFeePending", err)
	}
}

func TestService_FeeStateTransitions(t *testing.T) {
	svc, clock := newTestService(t)

	state, _ := svc.State()
	if state != domain.FeeOK {
		t.Fatalf("initial state = %s, want %s", state, domain.FeeOK)
	}

	svc.ReportBreach("goal-1")
	state, _ = svc.State()
	if state != domain.FeePending {
		t.Fatalf("state after breach = %s, want %s", state, domain.FeePending)
	}

	tx, err := svc.PayFee()
	if err != nil {
		t.Fatalf("PayFee() error: %v", err)
	}
	if tx.Amount != domain.CreditsFull {
		t.Errorf("fee tx amount = %d, want %d", tx.Amount, domain.CreditsFull)
	}
	state, _ = svc.State()
	if state != domain.FeePaid {
		t.Fatalf("state after payment = %s, want %s", state, domain.FeePaid)
	}

	// Paying twice is rejected: nothing is pending anymore.
	if _, err := svc.PayFee(); err != domain.ErrNoFeePending {
		t.Errorf("second PayFee() = %v, want ErrNoFeePending", err)
	}

	clock.now = clock.now.AddDate(0, 0, 1)
	state, _ = svc.State()
	if state != domain.FeeOK {
		t.Errorf("state next day = %s, want %s", state, domain.FeeOK)
	}
}

// ─── Boundary Resets ────────────────────────────────────────────────────────

func TestService_DailyResetRestoresCredits(t *testing.T) {
	svc, clock := newTestService(t)

	svc.ReportBreach("goal-1")
	clock.now = clock.now.AddDate(0, 0, 1)

	p, err := svc.CurrentPeriod()
	if err != nil {
		t.Fatalf("CurrentPeriod() error: %v", err)
	}
	if p.CreditsRemaining != domain.CreditsFull {
		t.Errorf("credits next day = %d, want %d", p.CreditsRemaining, domain.CreditsFull)
	}
	if !p.LastFailureDate.IsZero() {
		t.Error("last failure marker should clear at the daily reset")
	}
	// A new breach the next day charges again.
	tx, _ := svc.ReportBreach("goal-1")
	if tx.Type != domain.TxBreach {
		t.Errorf("next-day breach type = %s, want %s", tx.Type, domain.TxBreach)
	}
	if p, _ := svc.CurrentPeriod(); p.FailureCount != 2 {
		t.Errorf("failure count across days = %d, want 2", p.FailureCount)
	}
}

func TestService_WeeklyRollover(t *testing.T) {
	svc, clock := newTestService(t)

	svc.ReportBreach("goal-1")
	old, _ := svc.CurrentPeriod()

	// Next Monday.
	clock.now = time.Date(2025, 6, 16, 9, 0, 0, 0, time.Local)

	p, err := svc.CurrentPeriod()
	if err != nil {
		t.Fatalf("CurrentPeriod() after rollover error: %v", err)
	}
	if p.ID == old.ID {
		t.Fatal("rollover should start a new period")
	}
	if p.CreditsRemaining != domain.CreditsFull {
		t.Errorf("new week credits = %d, want %d", p.CreditsRemaining, domain.CreditsFull)
	}
	if p.FailureCount != 0 {
		t.Errorf("new week failure count = %d, want 0", p.FailureCount)
	}
	if p.StartDate.Weekday() != time.Monday {
		t.Errorf("new period starts on %s, want Monday", p.StartDate.Weekday())
	}

	periods, err := svc.Periods(10)
	if err != nil {
		t.Fatalf("Periods() error: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("period count after rollover = %d, want 2", len(periods))
	}
}

type recordingCloser struct{ closed []time.Time }

func (r *recordingCloser) CloseDay(endedDay time.Time) error {
	r.closed = append(r.closed, endedDay)
	return nil
}

func TestService_DailyResetClosesYesterday(t *testing.T) {
	clock := &fakeClock{now: wednesday}
	closer := &recordingCloser{}
	svc, err := NewService(newTestDB(t), clock, closer)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	svc.Normalize() // establishes the period, no crossing yet
	clock.now = clock.now.AddDate(0, 0, 1)
	if err := svc.Normalize(); err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	if len(closer.closed) != 1 {
		t.Fatalf("day-close calls = %d, want 1", len(closer.closed))
	}
	if got, want := domain.DayKey(closer.closed[0]), domain.DayKey(wednesday); got != want {
		t.Errorf("closed day = %s, want %s", got, want)
	}

	// Same day again: no further close.
	svc.Normalize()
	if len(closer.closed) != 1 {
		t.Errorf("repeat normalize closed %d days, want 1", len(closer.closed))
	}
}

// ─── History and Migration ──────────────────────────────────────────────────

func TestService_HistoryNewestFirst(t *testing.T) {
	svc, clock := newTestService(t)

	svc.ReportBreach("goal-1")
	clock.now = clock.now.Add(time.Hour)
	svc.PayFee()

	txs, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("history length = %d, want 2", len(txs))
	}
	if txs[0].Type != domain.TxFeePaid {
		t.Errorf("newest tx = %s, want %s", txs[0].Type, domain.TxFeePaid)
	}
}

func TestService_FeesPaidTotal(t *testing.T) {
	svc, clock := newTestService(t)

	svc.ReportBreach("goal-1")
	svc.PayFee()
	clock.now = clock.now.AddDate(0, 0, 1)
	svc.ReportBreach("goal-1")
	svc.PayFee()

	total, err := svc.FeesPaidTotal()
	if err != nil {
		t.Fatalf("FeesPaidTotal() error: %v", err)
	}
	if total != 2 {
		t.Errorf("fees paid total = %d, want 2", total)
	}
}

func TestService_LegacyTransactionMigration(t *testing.T) {
	db := newTestDB(t)
	clock := &fakeClock{now: wednesday}

	// Pre-versioning rows: a progressive charge and a flat one.
	legacy := domain.Transaction{
		ID: uuid.NewString(), PeriodID: "old-period",
		Timestamp: wednesday.AddDate(0, 0, -30),
		Type:      domain.TxBreach, Amount: -3,
	}
	flat := domain.Transaction{
		ID: uuid.NewString(), PeriodID: "old-period",
		Timestamp: wednesday.AddDate(0, 0, -10),
		Type:      domain.TxBreach, Amount: -domain.CreditsFull,
	}
	if err := db.InsertTransaction(legacy); err != nil {
		t.Fatalf("insert legacy: %v", err)
	}
	if err := db.InsertTransaction(flat); err != nil {
		t.Fatalf("insert flat: %v", err)
	}

	svc, err := NewService(db, clock, nil)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	txs, err := svc.AllHistory(10)
	if err != nil {
		t.Fatalf("AllHistory() error: %v", err)
	}
	byID := map[string]domain.Transaction{}
	for _, tx := range txs {
		byID[tx.ID] = tx
	}
	if got := byID[legacy.ID].SchemaVersion; got != domain.TxSchemaProgressive {
		t.Errorf("progressive row stamped version %d, want %d", got, domain.TxSchemaProgressive)
	}
	if !byID[legacy.ID].Legacy() {
		t.Error("progressive row should report Legacy()")
	}
	if got := byID[flat.ID].SchemaVersion; got != domain.TxSchemaFlatFee {
		t.Errorf("flat row stamped version %d, want %d", got, domain.TxSchemaFlatFee)
	}
	// Amounts are never rewritten.
	if byID[legacy.ID].Amount != -3 {
		t.Errorf("legacy amount = %d, want -3", byID[legacy.ID].Amount)
	}
}
