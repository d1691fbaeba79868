package engagement

import (
	"fmt"
	"time"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/metrics"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// PetService derives the pet's health from the day's aggregate
// usage-to-limit ratio and keeps the per-day history the rendering
// layer charts.
type PetService struct {
	db    *sqlite.DB
	clock domain.Clock
}

// NewPetService creates a pet health service.
func NewPetService(db *sqlite.DB, clock domain.Clock) *PetService {
	return &PetService{db: db, clock: clock}
}

// HealthScore maps aggregate used/limit minutes to a 0-100 score and a
// mood. A limit of 0 (nothing monitored, or all-blocked sentinels)
// scores a healthy 100. The mapping is monotonically decreasing in the
// ratio: flat at 100 up to 0.5, then falling toward 0.
func HealthScore(totalUsedMinutes, totalLimitMinutes int) (int, domain.PetMood) {
	score := 100
	if totalLimitMinutes > 0 {
		ratio := float64(totalUsedMinutes) / float64(totalLimitMinutes)
		switch {
		case ratio <= 0.5:
			score = 100
		case ratio <= 1.0:
			score = 100 - int((ratio-0.5)*120)
		default:
			score = 40 - int((ratio-1.0)*45)
		}
		if score < 0 {
			score = 0
		}
	}
	return score, MoodForScore(score)
}

// MoodForScore buckets a health score into the discrete mood scale.
func MoodForScore(score int) domain.PetMood {
	switch {
	case score >= 90:
		return domain.MoodFullHealth
	case score >= 70:
		return domain.MoodHappy
	case score >= 50:
		return domain.MoodContent
	case score >= 20:
		return domain.MoodSad
	default:
		return domain.MoodSick
	}
}

// DayTotals sums the day's usage against the active goals' base limits.
// loaded=false means the enforcement collaborator has reported nothing
// for the day yet — callers must not read that as "zero usage".
func (p *PetService) DayTotals(day time.Time) (usedMinutes, limitMinutes int, loaded bool, err error) {
	recs, err := p.db.UsageForDay(day)
	if err != nil {
		return 0, 0, false, fmt.Errorf("usage for day: %w", err)
	}
	for _, r := range recs {
		usedMinutes += r.ActualMinutes
	}
	loaded = len(recs) > 0
	if !loaded {
		if total, ok, err := p.db.DailyScreenTime(domain.DayKey(day)); err != nil {
			return 0, 0, false, err
		} else if ok {
			usedMinutes = total
			loaded = true
		}
	}

	goals, err := p.db.ListGoals(true)
	if err != nil {
		return 0, 0, false, fmt.Errorf("list goals: %w", err)
	}
	for _, g := range goals {
		limitMinutes += g.BaseDailyLimit
	}
	return usedMinutes, limitMinutes, loaded, nil
}

// SnapshotDay computes and records the day's health entry. Invoked at
// the day-close checkpoint.
func (p *PetService) SnapshotDay(day time.Time) (domain.HealthEntry, error) {
	used, limit, _, err := p.DayTotals(day)
	if err != nil {
		return domain.HealthEntry{}, err
	}
	score, mood := HealthScore(used, limit)
	entry := domain.HealthEntry{Date: domain.Today(day), Score: score, Mood: mood}

	if err := p.db.UpsertHealthEntry(domain.DayKey(day), score, mood); err != nil {
		return entry, fmt.Errorf("record health: %w", err)
	}
	metrics.PetHealthScore.Set(float64(score))
	return entry, nil
}

// CurrentHealth computes today's live health without persisting it.
func (p *PetService) CurrentHealth() (domain.HealthEntry, bool, error) {
	now := p.clock.Now()
	used, limit, loaded, err := p.DayTotals(now)
	if err != nil {
		return domain.HealthEntry{}, false, err
	}
	score, mood := HealthScore(used, limit)
	return domain.HealthEntry{Date: domain.Today(now), Score: score, Mood: mood}, loaded, nil
}

// History returns recorded health snapshots, newest first.
func (p *PetService) History(limit int) ([]domain.HealthEntry, error) {
	return p.db.HealthHistory(limit)
}
