package engagement

import (
	"fmt"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/metrics"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// LedgerView is the read-only slice of the ledger the snapshot needs.
type LedgerView interface {
	CurrentPeriod() (domain.WeeklyPeriod, error)
	FeesPaidTotal() (int, error)
}

// AchievementService evaluates the achievement catalog against an
// immutable snapshot of ledger/goal/streak/pet state.
type AchievementService struct {
	db          *sqlite.DB
	clock       domain.Clock
	ledger      LedgerView
	streak      *StreakService
	pet         *PetService
	definitions []domain.AchievementDef
}

// NewAchievementService creates an achievement service with the full
// catalog.
func NewAchievementService(db *sqlite.DB, clock domain.Clock, ledger LedgerView, streak *StreakService, pet *PetService) *AchievementService {
	return &AchievementService{
		db:          db,
		clock:       clock,
		ledger:      ledger,
		streak:      streak,
		pet:         pet,
		definitions: AllAchievements(),
	}
}

// Snapshot assembles the immutable state achievement predicates see.
func (a *AchievementService) Snapshot() (domain.Snapshot, error) {
	var snap domain.Snapshot

	period, err := a.ledger.CurrentPeriod()
	if err != nil {
		return snap, fmt.Errorf("ledger: %w", err)
	}
	now := a.clock.Now()
	snap.CreditsRemaining = period.CreditsRemaining
	snap.FeePaidToday = period.State(now) == domain.FeePaid

	snap.FeesPaidTotal, err = a.ledger.FeesPaidTotal()
	if err != nil {
		return snap, fmt.Errorf("fees paid: %w", err)
	}

	streak, err := a.streak.Current()
	if err != nil {
		return snap, fmt.Errorf("streak: %w", err)
	}
	snap.CurrentStreak = streak.CurrentDays
	snap.LongestStreak = streak.LongestDays

	goals, err := a.db.ListGoals(true)
	if err != nil {
		return snap, fmt.Errorf("goals: %w", err)
	}
	snap.ActiveGoals = len(goals)

	snap.HistoryDays, err = a.db.DayActivityCount()
	if err != nil {
		return snap, fmt.Errorf("history: %w", err)
	}

	used, limit, loaded, err := a.pet.DayTotals(now)
	if err != nil {
		return snap, fmt.Errorf("day totals: %w", err)
	}
	snap.UsageDataLoaded = loaded
	if limit > 0 {
		snap.UsageRatio = float64(used) / float64(limit)
	}
	snap.PetScore, snap.PetMood = HealthScore(used, limit)

	snap.PuzzlesSolved, err = a.db.PuzzlesSolved(domain.DayKey(now))
	if err != nil {
		return snap, fmt.Errorf("puzzles: %w", err)
	}

	unlocked, err := a.db.ListUnlockedAchievements()
	if err != nil {
		return snap, fmt.Errorf("unlocked: %w", err)
	}
	snap.Unlocked = make(map[string]bool, len(unlocked))
	for _, u := range unlocked {
		snap.Unlocked[u.ID] = true
	}

	return snap, nil
}

// Evaluate returns the achievements whose predicates hold for the
// snapshot and that are not in its unlocked set. Pure.
func Evaluate(defs []domain.AchievementDef, snap domain.Snapshot) []domain.AchievementDef {
	var satisfied []domain.AchievementDef
	for _, def := range defs {
		if snap.Unlocked[def.ID] {
			continue
		}
		if def.Predicate != nil && def.Predicate(snap) {
			satisfied = append(satisfied, def)
		}
	}
	return satisfied
}

// CheckAndUnlock evaluates the catalog and persists new unlocks.
// Idempotent — already-unlocked achievements are skipped.
func (a *AchievementService) CheckAndUnlock() ([]domain.AchievementDef, error) {
	snap, err := a.Snapshot()
	if err != nil {
		return nil, err
	}

	var newlyUnlocked []domain.AchievementDef
	for _, def := range Evaluate(a.definitions, snap) {
		isNew, err := a.db.UnlockAchievement(def.ID, a.clock.Now())
		if err != nil {
			return nil, err
		}
		if isNew {
			newlyUnlocked = append(newlyUnlocked, def)
			metrics.AchievementsUnlocked.Inc()
		}
	}
	return newlyUnlocked, nil
}

// ListUnlocked returns all achievements earned so far.
func (a *AchievementService) ListUnlocked() ([]domain.UnlockedAchievement, error) {
	return a.db.ListUnlockedAchievements()
}

// Definitions returns the full catalog (for display).
func (a *AchievementService) Definitions() []domain.AchievementDef {
	return a.definitions
}

// ─── Achievement Catalog ────────────────────────────────────────────────────
// Independent boolean predicates over the snapshot — no ordering or
// mutual exclusion. Names only; copy and artwork are presentation.

// AllAchievements returns the full achievement catalog.
func AllAchievements() []domain.AchievementDef {
	return []domain.AchievementDef{
		// ── Getting Started ────────────────────────────────────────────
		{
			ID: "first_goal", Name: "First Watchlist", Category: domain.CatGettingStarted,
			Predicate: func(s domain.Snapshot) bool { return s.ActiveGoals >= 1 },
		},
		{
			ID: "goal_trio", Name: "Triple Coverage", Category: domain.CatGettingStarted,
			Predicate: func(s domain.Snapshot) bool { return s.ActiveGoals >= 3 },
		},
		{
			ID: "first_week_tracked", Name: "Data Keeper", Category: domain.CatGettingStarted,
			Predicate: func(s domain.Snapshot) bool { return s.HistoryDays >= 7 },
		},

		// ── Streaks ────────────────────────────────────────────────────
		{
			ID: "streak_3", Name: "Warming Up", Category: domain.CatStreaks,
			Predicate: func(s domain.Snapshot) bool { return s.CurrentStreak >= 3 },
		},
		{
			ID: "streak_7", Name: "Week Warrior", Category: domain.CatStreaks,
			Predicate: func(s domain.Snapshot) bool { return s.CurrentStreak >= 7 },
		},
		{
			ID: "streak_14", Name: "Fortnight Force", Category: domain.CatStreaks,
			Predicate: func(s domain.Snapshot) bool { return s.CurrentStreak >= 14 },
		},
		{
			ID: "streak_longest_7", Name: "Personal Best", Category: domain.CatStreaks,
			Predicate: func(s domain.Snapshot) bool { return s.LongestStreak >= 7 },
		},

		// ── Discipline ─────────────────────────────────────────────────
		{
			ID: "credits_intact", Name: "Untouched Balance", Category: domain.CatDiscipline,
			Predicate: func(s domain.Snapshot) bool {
				return s.CreditsRemaining == domain.CreditsFull && s.HistoryDays >= 3
			},
		},
		{
			ID: "first_fee", Name: "Paid Up", Category: domain.CatDiscipline,
			Predicate: func(s domain.Snapshot) bool { return s.FeesPaidTotal >= 1 },
		},
		{
			ID: "comeback", Name: "Back on Track", Category: domain.CatDiscipline,
			Predicate: func(s domain.Snapshot) bool { return s.FeePaidToday && s.CurrentStreak >= 1 },
		},
		{
			ID: "low_usage_day", Name: "Light Touch", Category: domain.CatDiscipline,
			// Guard: only counts once usage data has actually loaded —
			// an empty shared region is "no data yet", not a quiet day.
			Predicate: func(s domain.Snapshot) bool {
				return s.UsageDataLoaded && s.UsageRatio <= 0.5
			},
		},
		{
			ID: "puzzle_5", Name: "Puzzle Grinder", Category: domain.CatDiscipline,
			Predicate: func(s domain.Snapshot) bool { return s.PuzzlesSolved >= 5 },
		},

		// ── Pet ────────────────────────────────────────────────────────
		{
			ID: "pet_full_health", Name: "Glowing Companion", Category: domain.CatPet,
			Predicate: func(s domain.Snapshot) bool {
				return s.UsageDataLoaded && s.PetMood == domain.MoodFullHealth
			},
		},
		{
			ID: "pet_never_sick", Name: "Careful Keeper", Category: domain.CatPet,
			Predicate: func(s domain.Snapshot) bool {
				return s.UsageDataLoaded && s.PetScore >= 50 && s.HistoryDays >= 7
			},
		},
	}
}
