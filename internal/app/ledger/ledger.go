// Package ledger implements the weekly accountability ledger: credit
// balance, penalty history, and the accountability-fee state machine.
// Every read or write first runs the reset normalization against the
// injected clock, so day and week boundaries are handled lazily and
// idempotently.
package ledger

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/metrics"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// DayCloser receives the day-close checkpoint during daily normalization.
// Implemented by the engagement streak tracker.
type DayCloser interface {
	CloseDay(endedDay time.Time) error
}

// Service owns the current WeeklyPeriod. All mutations are serialized
// under one mutex: the reset scheduler and the penalty calculator both
// read-then-write the same record, and a lost update would corrupt
// credit accounting.
type Service struct {
	mu       sync.Mutex
	db       *sqlite.DB
	clock    domain.Clock
	dayClose DayCloser

	period *domain.WeeklyPeriod // authoritative in-memory snapshot
	dirty  bool                 // pending flush after a failed durable write
}

// NewService loads (or lazily creates) the current period and migrates
// any pre-versioning transaction rows. dayClose may be nil.
func NewService(db *sqlite.DB, clock domain.Clock, dayClose DayCloser) (*Service, error) {
	s := &Service{db: db, clock: clock, dayClose: dayClose}

	if n, err := db.MigrateLegacyTransactions(); err != nil {
		return nil, fmt.Errorf("migrate legacy transactions: %w", err)
	} else if n > 0 {
		log.Printf("[ledger] stamped schema version on %d historical transactions", n)
	}

	p, err := db.CurrentPeriod()
	if err != nil {
		// Corrupt or unreadable period: a fresh week beats a dead ledger.
		log.Printf("[ledger] unreadable current period, starting fresh: %v", err)
		p = nil
	}
	s.period = p
	return s, nil
}

// SetDayCloser wires the streak tracker after construction (the tracker
// is built independently but closes days from normalization).
func (s *Service) SetDayCloser(dc DayCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayClose = dc
}

// CurrentPeriod normalizes and returns a copy of the active period.
func (s *Service) CurrentPeriod() (domain.WeeklyPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.normalizeLocked(); err != nil {
		return domain.WeeklyPeriod{}, err
	}
	return *s.period, nil
}

// CreditsRemaining normalizes and returns the credit balance.
func (s *Service) CreditsRemaining() (int, error) {
	p, err := s.CurrentPeriod()
	if err != nil {
		return 0, err
	}
	return p.CreditsRemaining, nil
}

// State normalizes and returns the fee-machine position.
func (s *Service) State() (domain.FeeState, error) {
	p, err := s.CurrentPeriod()
	if err != nil {
		return "", err
	}
	return p.State(s.clock.Now()), nil
}

// ReportBreach charges a limit breach against the ledger. The first
// breach of a calendar day costs the full credit balance; any further
// breaches that day are recorded as zero-amount audit entries — the
// user already owes (or already paid) today's fee.
func (s *Service) ReportBreach(goalID string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.normalizeLocked(); err != nil {
		return domain.Transaction{}, err
	}

	now := s.clock.Now()
	metrics.BreachesReported.Inc()

	free := domain.SameDay(s.period.FeePaidDate, now) ||
		domain.SameDay(s.period.LastFailureDate, now)

	tx := domain.Transaction{
		ID:            uuid.NewString(),
		PeriodID:      s.period.ID,
		Timestamp:     now,
		GoalID:        goalID,
		SchemaVersion: domain.TxSchemaFlatFee,
	}
	if free {
		tx.Type = domain.TxBreachFree
		tx.Amount = 0
		tx.Description = "breach already charged or paid today"
	} else {
		tx.Type = domain.TxBreach
		tx.Amount = -domain.CreditsFull
		s.period.CreditsRemaining = 0
		s.period.FailureCount++
		s.period.LastFailureDate = now
		metrics.CreditsBalance.Set(0)
	}

	if err := s.db.InsertTransaction(tx); err != nil {
		return tx, fmt.Errorf("record breach: %w", err)
	}
	if err := s.flushLocked(); err != nil {
		return tx, err
	}
	return tx, nil
}

// PayFee restores credits to full for the rest of the day. Only
// meaningful while a fee is pending.
func (s *Service) PayFee() (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.normalizeLocked(); err != nil {
		return domain.Transaction{}, err
	}

	now := s.clock.Now()
	if s.period.State(now) != domain.FeePending {
		return domain.Transaction{}, domain.ErrNoFeePending
	}

	s.period.CreditsRemaining = domain.CreditsFull
	s.period.FeePaidDate = now

	tx := domain.Transaction{
		ID:            uuid.NewString(),
		PeriodID:      s.period.ID,
		Timestamp:     now,
		Type:          domain.TxFeePaid,
		Amount:        domain.CreditsFull,
		Description:   "accountability fee paid",
		SchemaVersion: domain.TxSchemaFlatFee,
	}
	if err := s.db.InsertTransaction(tx); err != nil {
		return tx, fmt.Errorf("record fee: %w", err)
	}
	if err := s.flushLocked(); err != nil {
		return tx, err
	}

	metrics.CreditsBalance.Set(float64(domain.CreditsFull))
	metrics.FeesPaid.Inc()
	return tx, nil
}

// History returns recent transactions for the current period. Legacy
// progressive-model rows keep their original amounts and are tagged by
// schema version so reporting can interpret them.
func (s *Service) History(limit int) ([]domain.Transaction, error) {
	p, err := s.CurrentPeriod()
	if err != nil {
		return nil, err
	}
	return s.db.ListTransactions(p.ID, limit)
}

// AllHistory returns transactions across every period, newest first.
func (s *Service) AllHistory(limit int) ([]domain.Transaction, error) {
	if _, err := s.CurrentPeriod(); err != nil {
		return nil, err
	}
	return s.db.ListTransactions("", limit)
}

// Periods returns the period history, current first.
func (s *Service) Periods(limit int) ([]domain.WeeklyPeriod, error) {
	if _, err := s.CurrentPeriod(); err != nil {
		return nil, err
	}
	return s.db.ListPeriods(limit)
}

// FeesPaidTotal counts fee payments across all periods.
func (s *Service) FeesPaidTotal() (int, error) {
	return s.db.CountTransactions(domain.TxFeePaid)
}

// Normalize runs boundary normalization explicitly. The maintenance
// loop calls this at midnight; all reads run it implicitly anyway.
func (s *Service) Normalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalizeLocked()
}

// Flush retries a pending durable write after an earlier failure.
func (s *Service) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || s.period == nil {
		return nil
	}
	return s.flushLocked()
}

// ─── Reset Scheduler ────────────────────────────────────────────────────────

// normalizeLocked detects day/week boundary crossings and applies the
// corresponding resets. Idempotent: within the same day and week it is
// a no-op after the first call. Caller holds s.mu.
func (s *Service) normalizeLocked() error {
	now := s.clock.Now()
	today := domain.Today(now)

	if s.period == nil {
		return s.startFreshPeriodLocked(now)
	}

	changed := s.dirty

	// Daily crossing: restore credits, clear the day-scoped markers,
	// expire day-scoped overrides, close yesterday for the streak.
	if today.After(domain.Today(s.period.LastDailyResetDate)) {
		changed = true
		s.period.CreditsRemaining = domain.CreditsFull
		s.period.LastFailureDate = time.Time{}
		s.period.FeePaidDate = time.Time{}
		s.period.LastDailyResetDate = today

		if _, err := s.db.DeleteExpiredRestrictions(now); err != nil {
			return fmt.Errorf("expire restrictions: %w", err)
		}
		if _, err := s.db.DeleteElapsedExtensions(now); err != nil {
			return fmt.Errorf("expire extensions: %w", err)
		}
		if _, err := s.db.DeleteExpiredSessionModes(now); err != nil {
			return fmt.Errorf("expire session modes: %w", err)
		}

		if s.dayClose != nil {
			if err := s.dayClose.CloseDay(today.AddDate(0, 0, -1)); err != nil {
				log.Printf("[ledger] day-close: %v", err)
			}
		}
		metrics.ResetsRun.WithLabelValues("daily").Inc()
	}

	// Weekly crossing: freeze the old period as history and roll a new
	// Monday–Sunday window with failures cleared.
	if today.After(s.period.EndDate) ||
		domain.ISOWeek(today) != domain.ISOWeek(s.period.StartDate) {
		if err := s.db.SupersedePeriod(s.period.ID); err != nil {
			return fmt.Errorf("supersede period: %w", err)
		}
		metrics.ResetsRun.WithLabelValues("weekly").Inc()
		return s.startFreshPeriodLocked(now)
	}

	// Out-of-range values are corrected in place, never rejected.
	if c := clamp(s.period.CreditsRemaining, 0, domain.CreditsFull); c != s.period.CreditsRemaining {
		s.period.CreditsRemaining = c
		changed = true
	}
	if s.period.FailureCount < 0 {
		s.period.FailureCount = 0
		changed = true
	}

	metrics.CreditsBalance.Set(float64(s.period.CreditsRemaining))
	if !changed {
		return nil
	}
	return s.flushLocked()
}

// startFreshPeriodLocked creates the period covering now, beginning on
// the most recent Monday.
func (s *Service) startFreshPeriodLocked(now time.Time) error {
	p := domain.WeeklyPeriod{
		ID:                 uuid.NewString(),
		StartDate:          domain.StartOfWeek(now),
		EndDate:            domain.EndOfWeek(now),
		CreditsRemaining:   domain.CreditsFull,
		LastDailyResetDate: domain.Today(now),
	}
	s.period = &p
	metrics.CreditsBalance.Set(float64(p.CreditsRemaining))

	if err := s.db.InsertPeriod(p); err != nil {
		s.dirty = true
		return fmt.Errorf("%w: insert period: %v", domain.ErrStaleState, err)
	}
	s.dirty = false
	return nil
}

// flushLocked persists the in-memory period. On failure the snapshot
// stays authoritative and the write is retried by Flush.
func (s *Service) flushLocked() error {
	if err := s.db.UpdatePeriod(*s.period); err != nil {
		s.dirty = true
		return fmt.Errorf("%w: update period: %v", domain.ErrStaleState, err)
	}
	s.dirty = false
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
