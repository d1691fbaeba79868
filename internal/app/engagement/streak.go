// Package engagement implements the gamification layer: streaks, the
// virtual pet's health model, and the achievement catalog. Evaluation
// only — presentation (copy, sprites, animations) lives elsewhere.
package engagement

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/metrics"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// StreakService tracks consecutive days with at least one actively
// blocked app. The per-day activity map is written all day long
// (idempotent upsert); the streak itself moves exactly once per day at
// the daily-reset checkpoint.
type StreakService struct {
	db  *sqlite.DB
	pet *PetService // day-end health snapshot; may be nil in tests
}

// NewStreakService creates a streak tracker.
func NewStreakService(db *sqlite.DB, pet *PetService) *StreakService {
	return &StreakService{db: db, pet: pet}
}

// Current loads the streak state.
func (s *StreakService) Current() (domain.Streak, error) {
	var streak domain.Streak

	cur, err := s.db.GetEngagement("streak_current")
	if err != nil {
		return streak, fmt.Errorf("get streak_current: %w", err)
	}
	if cur != "" {
		streak.CurrentDays, _ = strconv.Atoi(cur)
	}

	longest, err := s.db.GetEngagement("streak_longest")
	if err != nil {
		return streak, fmt.Errorf("get streak_longest: %w", err)
	}
	if longest != "" {
		streak.LongestDays, _ = strconv.Atoi(longest)
	}

	lastClosed, err := s.db.GetEngagement("streak_last_closed")
	if err != nil {
		return streak, fmt.Errorf("get streak_last_closed: %w", err)
	}
	if lastClosed != "" {
		ts, _ := strconv.ParseInt(lastClosed, 10, 64)
		streak.LastClosed = time.Unix(ts, 0)
	}

	return streak, nil
}

// MarkDayActivity upserts the blocked-activity flag for a day. Called
// many times during a day; only the final value matters at close time.
func (s *StreakService) MarkDayActivity(day time.Time, hasBlockedApps bool) error {
	return s.db.SetDayActivity(domain.DayKey(day), hasBlockedApps)
}

// CloseDay advances the streak for the day that just ended. Called by
// the daily reset; the last-closed marker makes a repeated call for the
// same day a no-op.
func (s *StreakService) CloseDay(endedDay time.Time) error {
	streak, err := s.Current()
	if err != nil {
		return err
	}

	ended := domain.Today(endedDay)
	if !streak.LastClosed.IsZero() && !ended.After(domain.Today(streak.LastClosed)) {
		return nil // already closed
	}

	active, ok, err := s.db.DayActivity(domain.DayKey(ended))
	if err != nil {
		return fmt.Errorf("day activity: %w", err)
	}

	switch {
	case ok && active:
		streak.CurrentDays++
	case !ok:
		count, err := s.db.DayActivityCount()
		if err != nil {
			return fmt.Errorf("activity count: %w", err)
		}
		if count == 0 && streak.CurrentDays > 0 {
			// Compatibility shim: a nonzero streak carried over from a
			// schema with no per-day history counts the missing day as
			// maintained instead of broken.
			streak.CurrentDays++
		} else {
			streak.CurrentDays = 0
		}
	default:
		streak.CurrentDays = 0
	}

	if streak.CurrentDays > streak.LongestDays {
		streak.LongestDays = streak.CurrentDays
	}
	streak.LastClosed = ended

	if s.pet != nil {
		if _, err := s.pet.SnapshotDay(ended); err != nil {
			return fmt.Errorf("health snapshot: %w", err)
		}
	}

	// Prune anything older than the retention window.
	cutoff := domain.DayKey(ended.AddDate(0, 0, -(domain.ActivityHistoryDays - 1)))
	if _, err := s.db.PruneDayActivity(cutoff); err != nil {
		return fmt.Errorf("prune activity: %w", err)
	}
	if _, err := s.db.PruneHealthHistory(cutoff); err != nil {
		return fmt.Errorf("prune health: %w", err)
	}
	if _, err := s.db.PruneShared(cutoff); err != nil {
		return fmt.Errorf("prune shared: %w", err)
	}

	metrics.StreakDays.Set(float64(streak.CurrentDays))
	return s.save(streak)
}

// save persists streak state to the engagement KV table.
func (s *StreakService) save(streak domain.Streak) error {
	pairs := map[string]string{
		"streak_current":     strconv.Itoa(streak.CurrentDays),
		"streak_longest":     strconv.Itoa(streak.LongestDays),
		"streak_last_closed": strconv.FormatInt(streak.LastClosed.Unix(), 10),
	}
	for k, v := range pairs {
		if err := s.db.SetEngagement(k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}
