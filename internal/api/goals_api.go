package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tally-app/tally/internal/domain"
)

// handleListGoals returns goals. ?all=true includes deactivated ones.
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	goals, err := s.limits.Goals(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if goals == nil {
		goals = []domain.Goal{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"goals": goals})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppIdentifier string `json:"app_identifier"`
		DisplayName   string `json:"display_name"`
		LimitMinutes  int    `json:"limit_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppIdentifier == "" {
		writeError(w, http.StatusBadRequest, "app_identifier is required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.AppIdentifier
	}

	g, err := s.limits.CreateGoal(req.AppIdentifier, req.DisplayName, req.LimitMinutes)
	if errors.Is(err, domain.ErrGoalExists) {
		writeError(w, http.StatusConflict, "goal already exists for "+req.AppIdentifier)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleDeactivateGoal(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	if err := s.limits.DeactivateGoal(app); err != nil {
		if errors.Is(err, domain.ErrGoalNotFound) {
			writeError(w, http.StatusNotFound, "no goal for "+app)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// handleEffectiveLimit resolves the limit the enforcement collaborator
// should apply right now. An unmonitored app is a normal answer, not an
// error: configured=false, no blocking.
func (s *Server) handleEffectiveLimit(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	minutes, outcome, err := s.limits.EffectiveLimit(app)
	if errors.Is(err, domain.ErrGoalNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"app_identifier": app,
			"configured":     false,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"app_identifier":    app,
		"configured":        true,
		"effective_minutes": minutes,
		"outcome":           outcome,
		"blocked":           minutes == 0,
	})
}

func (s *Server) handleSetBaseLimit(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	var req struct {
		LimitMinutes int `json:"limit_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	staged, err := s.limits.SetBaseLimit(app, req.LimitMinutes)
	if err != nil {
		if errors.Is(err, domain.ErrGoalNotFound) {
			writeError(w, http.StatusNotFound, "no goal for "+app)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	applies := "immediately"
	if staged {
		applies = "next_day"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"app_identifier": app,
		"limit_minutes":  req.LimitMinutes,
		"applies":        applies,
	})
}

func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	ov, err := s.limits.Overrides(app)
	if errors.Is(err, domain.ErrGoalNotFound) {
		writeError(w, http.StatusNotFound, "no goal for "+app)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleSetRestriction(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	var req struct {
		Period       string `json:"period"` // daily | weekly | one-time
		LimitMinutes int    `json:"limit_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	win, err := s.limits.SetRestriction(app, domain.RestrictionPeriod(req.Period), req.LimitMinutes)
	switch {
	case errors.Is(err, domain.ErrGoalNotFound):
		writeError(w, http.StatusNotFound, "no goal for "+app)
	case errors.Is(err, domain.ErrUnknownRestrictionScope):
		writeError(w, http.StatusBadRequest, "unknown restriction period "+req.Period)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusCreated, win)
	}
}

func (s *Server) handleClearRestriction(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	if err := s.limits.ClearRestriction(app); err != nil {
		if errors.Is(err, domain.ErrGoalNotFound) {
			writeError(w, http.StatusNotFound, "no goal for "+app)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleGrantExtension(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	var req struct {
		Minutes          int `json:"minutes"`
		ExpiresInMinutes int `json:"expires_in_minutes"` // 0 = valid until the next daily reset
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ext, err := s.limits.GrantExtension(app, req.Minutes,
		time.Duration(req.ExpiresInMinutes)*time.Minute)
	if errors.Is(err, domain.ErrGoalNotFound) {
		writeError(w, http.StatusNotFound, "no goal for "+app)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ext)
}

func (s *Server) handleSessionMode(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	var req struct {
		Mode    string `json:"mode"` // none | extra-time | one-session
		Minutes int    `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := s.limits.ActivateSessionMode(app, domain.SessionModeKind(req.Mode), req.Minutes)
	switch {
	case errors.Is(err, domain.ErrGoalNotFound):
		writeError(w, http.StatusNotFound, "no goal for "+app)
	case errors.Is(err, domain.ErrUnknownSessionMode):
		writeError(w, http.StatusBadRequest, "unknown session mode "+req.Mode)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, mode)
	}
}

// handleReportUsage takes the enforcement collaborator's usage report.
// Achievements are re-evaluated afterwards so usage-dependent unlocks
// show up without waiting for the maintenance tick.
func (s *Server) handleReportUsage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppIdentifier string `json:"app_identifier"`
		Minutes       int    `json:"minutes"`
		ExceededLimit bool   `json:"exceeded_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppIdentifier == "" {
		writeError(w, http.StatusBadRequest, "app_identifier is required")
		return
	}

	if err := s.limits.ReportUsage(req.AppIdentifier, req.Minutes, req.ExceededLimit); err != nil {
		if errors.Is(err, domain.ErrGoalNotFound) {
			writeError(w, http.StatusNotFound, "no goal for "+req.AppIdentifier)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	unlocked, err := s.achievements.CheckAndUnlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "recorded",
		"new_unlocked": achievementIDs(unlocked),
	})
}

func achievementIDs(defs []domain.AchievementDef) []string {
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	return ids
}
