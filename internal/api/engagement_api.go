package api

import (
	"net/http"

	"github.com/tally-app/tally/internal/domain"
)

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := s.streak.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

// handleAchievements returns the catalog with unlock timestamps merged in.
func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.achievements.ListUnlocked()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byID := make(map[string]domain.UnlockedAchievement, len(unlocked))
	for _, u := range unlocked {
		byID[u.ID] = u
	}

	type entry struct {
		domain.AchievementDef
		Unlocked   bool   `json:"unlocked"`
		UnlockedAt string `json:"unlocked_at,omitempty"`
	}
	defs := s.achievements.Definitions()
	out := make([]entry, 0, len(defs))
	for _, d := range defs {
		e := entry{AchievementDef: d}
		if u, ok := byID[d.ID]; ok {
			e.Unlocked = true
			e.UnlockedAt = u.UnlockedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": out,
		"unlocked":     len(unlocked),
		"total":        len(defs),
	})
}

// handlePet returns today's live health plus the retained history.
func (s *Server) handlePet(w http.ResponseWriter, r *http.Request) {
	entry, loaded, err := s.pet.CurrentHealth()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := s.pet.History(domain.ActivityHistoryDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []domain.HealthEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score":       entry.Score,
		"mood":        entry.Mood,
		"usage_known": loaded,
		"history":     history,
	})
}

// handlePuzzleSolved counts a solved unlock puzzle for today and
// re-evaluates achievements.
func (s *Server) handlePuzzleSolved(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	total, err := s.db.IncrPuzzlesSolved(domain.DayKey(now), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	unlocked, err := s.achievements.CheckAndUnlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"solved_today": total,
		"new_unlocked": achievementIDs(unlocked),
	})
}

// handleSummary is the rendering layer's single catch-up call: one
// round-trip for the dashboard.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := s.ledger.CurrentPeriod()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	streak, err := s.streak.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pet, _, err := s.pet.CurrentHealth()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	goals, err := s.limits.Goals(true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	unlocked, err := s.achievements.ListUnlocked()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credits_remaining": period.CreditsRemaining,
		"fee_state":         period.State(s.clock.Now()),
		"failure_count":     period.FailureCount,
		"week_start":        period.StartDate,
		"week_end":          period.EndDate,
		"streak":            streak,
		"pet":               map[string]interface{}{"score": pet.Score, "mood": pet.Mood},
		"active_goals":      len(goals),
		"achievements":      len(unlocked),
	})
}
