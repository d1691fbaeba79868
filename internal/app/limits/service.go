// Package limits manages monitored goals, their overrides, and the
// effective-limit resolution the enforcement collaborator queries.
package limits

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/metrics"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// Normalizer runs the ledger's boundary normalization. Every limit read
// goes through it first so day-scoped overrides are expired on time.
type Normalizer interface {
	Normalize() error
}

// BreachSink charges a limit breach against the accountability ledger.
type BreachSink interface {
	ReportBreach(goalID string) (domain.Transaction, error)
}

// ActivityMarker records "had blocked apps today" for the streak tracker.
type ActivityMarker interface {
	MarkDayActivity(day time.Time, hasBlockedApps bool) error
}

// Service exposes the goal and override commands.
type Service struct {
	db       *sqlite.DB
	clock    domain.Clock
	ledger   Normalizer
	breaches BreachSink
	activity ActivityMarker
}

// NewService wires the limits service. ledger, breaches, and activity
// may be nil in tests exercising resolution only.
func NewService(db *sqlite.DB, clock domain.Clock, ledger Normalizer, breaches BreachSink, activity ActivityMarker) *Service {
	return &Service{db: db, clock: clock, ledger: ledger, breaches: breaches, activity: activity}
}

// ─── Goal Commands ──────────────────────────────────────────────────────────

// CreateGoal registers a monitored app. A base limit of 0 means
// "always blocked".
func (s *Service) CreateGoal(appIdentifier, displayName string, baseLimitMinutes int) (domain.Goal, error) {
	if baseLimitMinutes < 0 {
		baseLimitMinutes = 0
	}
	existing, err := s.db.GoalByApp(appIdentifier)
	if err != nil {
		return domain.Goal{}, err
	}
	if existing != nil && existing.IsActive {
		return *existing, domain.ErrGoalExists
	}

	g := domain.Goal{
		ID:             uuid.NewString(),
		AppIdentifier:  appIdentifier,
		DisplayName:    displayName,
		BaseDailyLimit: baseLimitMinutes,
		IsActive:       true,
		UpdatedAt:      s.clock.Now(),
	}
	if existing != nil {
		g.ID = existing.ID // reactivate the soft-deleted goal
	}
	if err := s.db.UpsertGoal(g); err != nil {
		return g, fmt.Errorf("upsert goal: %w", err)
	}
	return g, nil
}

// SetBaseLimit changes a goal's base daily limit. Tightening applies
// immediately; raising is staged and takes effect at the next daily
// boundary, so an in-the-moment craving cannot loosen today's limit.
// Returns whether the change was staged.
func (s *Service) SetBaseLimit(appIdentifier string, minutes int) (bool, error) {
	if minutes < 0 {
		minutes = 0
	}
	goal, err := s.requireGoal(appIdentifier)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	if minutes > goal.BaseDailyLimit {
		return true, s.db.SetPendingLimitChange(goal.ID, minutes, now)
	}
	if err := s.db.SetBaseLimit(appIdentifier, minutes, now); err != nil {
		return false, err
	}
	// A staged raise is moot once the limit moves down past it.
	return false, s.db.ClearPendingLimitChange(goal.ID)
}

// DeactivateGoal soft-deletes a goal; its history stays queryable.
func (s *Service) DeactivateGoal(appIdentifier string) error {
	return s.db.SetGoalActive(appIdentifier, false, s.clock.Now())
}

// Goals lists goals.
func (s *Service) Goals(activeOnly bool) ([]domain.Goal, error) {
	return s.db.ListGoals(activeOnly)
}

// ─── Effective Limit ────────────────────────────────────────────────────────

// EffectiveLimit resolves the effective daily limit for an app right
// now. Runs ledger normalization first, purges expired overrides, then
// delegates to the pure resolver.
func (s *Service) EffectiveLimit(appIdentifier string) (int, Outcome, error) {
	if s.ledger != nil {
		if err := s.ledger.Normalize(); err != nil {
			return 0, "", err
		}
	}

	goal, err := s.db.GoalByApp(appIdentifier)
	if err != nil {
		return 0, "", err
	}
	if goal == nil || !goal.IsActive {
		return 0, "", domain.ErrGoalNotFound
	}

	now := s.clock.Now()
	goal, err = s.applyStagedLimit(goal, now)
	if err != nil {
		return 0, "", err
	}
	if _, err := s.db.DeleteExpiredRestrictions(now); err != nil {
		return 0, "", fmt.Errorf("purge restrictions: %w", err)
	}
	if _, err := s.db.DeleteElapsedExtensions(now); err != nil {
		return 0, "", fmt.Errorf("purge extensions: %w", err)
	}
	if _, err := s.db.DeleteExpiredSessionModes(now); err != nil {
		return 0, "", fmt.Errorf("purge session modes: %w", err)
	}

	ov, err := s.db.OverridesFor(goal.ID)
	if err != nil {
		return 0, "", fmt.Errorf("load overrides: %w", err)
	}
	usage, err := s.db.UsageFor(goal.ID, now)
	if err != nil {
		return 0, "", fmt.Errorf("load usage: %w", err)
	}

	minutes, outcome := Resolve(*goal, ov, usage, now)
	metrics.LimitResolutions.WithLabelValues(string(outcome)).Inc()
	return minutes, outcome, nil
}

// ─── Usage Intake ───────────────────────────────────────────────────────────

// ReportUsage records the enforcement collaborator's minutes for an app
// today, marks streak activity, and charges the ledger on a breach.
func (s *Service) ReportUsage(appIdentifier string, minutes int, exceededLimit bool) error {
	if s.ledger != nil {
		if err := s.ledger.Normalize(); err != nil {
			return err
		}
	}

	goal, err := s.db.GoalByApp(appIdentifier)
	if err != nil {
		return err
	}
	if goal == nil {
		return domain.ErrGoalNotFound
	}

	now := s.clock.Now()
	if minutes < 0 {
		minutes = 0
	}

	rec, err := s.db.UsageFor(goal.ID, now)
	if err != nil {
		return fmt.Errorf("load usage: %w", err)
	}
	if rec == nil {
		rec = &domain.UsageRecord{
			ID:     uuid.NewString(),
			GoalID: goal.ID,
			Date:   domain.Today(now),
		}
	}
	rec.ActualMinutes = minutes
	rec.DidExceedLimit = rec.DidExceedLimit || exceededLimit
	if err := s.db.UpsertUsage(*rec); err != nil {
		return fmt.Errorf("upsert usage: %w", err)
	}
	if err := s.db.SetAppUsage(domain.DayKey(now), appIdentifier, minutes, now); err != nil {
		return fmt.Errorf("shared usage: %w", err)
	}
	metrics.UsageReports.Inc()

	if s.activity != nil {
		if err := s.activity.MarkDayActivity(now, true); err != nil {
			return fmt.Errorf("mark activity: %w", err)
		}
	}
	if exceededLimit && s.breaches != nil {
		if _, err := s.breaches.ReportBreach(goal.ID); err != nil {
			return fmt.Errorf("report breach: %w", err)
		}
	}
	return nil
}

// ─── Override Commands ──────────────────────────────────────────────────────

// SetRestriction configures the goal's restriction window. Daily windows
// are standing; weekly expire after 7 days; one-time at the next midnight.
func (s *Service) SetRestriction(appIdentifier string, period domain.RestrictionPeriod, limitMinutes int) (domain.RestrictionWindow, error) {
	goal, err := s.requireGoal(appIdentifier)
	if err != nil {
		return domain.RestrictionWindow{}, err
	}
	if limitMinutes < 0 {
		limitMinutes = 0
	}

	now := s.clock.Now()
	r := domain.RestrictionWindow{
		GoalID:    goal.ID,
		Period:    period,
		Limit:     limitMinutes,
		StartDate: domain.Today(now),
	}
	switch period {
	case domain.RestrictDaily:
		// standing override, no end date
	case domain.RestrictWeekly:
		r.EndDate = domain.Today(now).AddDate(0, 0, 7)
	case domain.RestrictOneTime:
		r.EndDate = domain.Today(now).AddDate(0, 0, 1)
	default:
		return r, domain.ErrUnknownRestrictionScope
	}

	if err := s.db.SetRestriction(r); err != nil {
		return r, fmt.Errorf("set restriction: %w", err)
	}
	return r, nil
}

// ClearRestriction removes the goal's restriction window.
func (s *Service) ClearRestriction(appIdentifier string) error {
	goal, err := s.requireGoal(appIdentifier)
	if err != nil {
		return err
	}
	return s.db.DeleteRestriction(goal.ID)
}

// GrantExtension grants bonus minutes. A zero expiresIn scopes the
// grant to today.
func (s *Service) GrantExtension(appIdentifier string, minutes int, expiresIn time.Duration) (domain.Extension, error) {
	goal, err := s.requireGoal(appIdentifier)
	if err != nil {
		return domain.Extension{}, err
	}
	if minutes <= 0 {
		minutes = domain.DefaultExtraTimeMinutes
	}

	now := s.clock.Now()
	e := domain.Extension{
		ID:        uuid.NewString(),
		GoalID:    goal.ID,
		Minutes:   minutes,
		GrantedAt: now,
	}
	if expiresIn > 0 {
		e.ExpiresAt = now.Add(expiresIn)
	}
	if err := s.db.InsertExtension(e); err != nil {
		return e, fmt.Errorf("insert extension: %w", err)
	}
	return e, nil
}

// ActivateSessionMode switches the goal's session mode. SessionNone
// clears the mode — the enforcement collaborator reports a one-session
// app close this way.
func (s *Service) ActivateSessionMode(appIdentifier string, kind domain.SessionModeKind, minutes int) (domain.SessionMode, error) {
	goal, err := s.requireGoal(appIdentifier)
	if err != nil {
		return domain.SessionMode{}, err
	}

	now := s.clock.Now()
	switch kind {
	case domain.SessionNone:
		return domain.SessionMode{GoalID: goal.ID, Kind: domain.SessionNone}, s.db.ClearSessionMode(goal.ID)
	case domain.SessionExtraTime:
		if minutes <= 0 {
			minutes = domain.DefaultExtraTimeMinutes
		}
		m := domain.SessionMode{
			GoalID:      goal.ID,
			Kind:        domain.SessionExtraTime,
			ActivatedAt: now,
			ExpiresAt:   now.Add(time.Duration(minutes) * time.Minute),
			Minutes:     minutes,
		}
		return m, s.db.SetSessionMode(m)
	case domain.SessionOneSession:
		m := domain.SessionMode{
			GoalID:      goal.ID,
			Kind:        domain.SessionOneSession,
			ActivatedAt: now,
		}
		return m, s.db.SetSessionMode(m)
	default:
		return domain.SessionMode{}, domain.ErrUnknownSessionMode
	}
}

// Overrides returns the goal's full override record.
func (s *Service) Overrides(appIdentifier string) (domain.OverrideSet, error) {
	goal, err := s.requireGoal(appIdentifier)
	if err != nil {
		return domain.OverrideSet{}, err
	}
	return s.db.OverridesFor(goal.ID)
}

// applyStagedLimit promotes a staged limit raise once its staging day
// has passed.
func (s *Service) applyStagedLimit(goal *domain.Goal, now time.Time) (*domain.Goal, error) {
	minutes, stagedAt, ok, err := s.db.PendingLimitChange(goal.ID)
	if err != nil {
		return nil, fmt.Errorf("pending limit: %w", err)
	}
	if !ok || !domain.Today(now).After(domain.Today(stagedAt)) {
		return goal, nil
	}
	if err := s.db.SetBaseLimit(goal.AppIdentifier, minutes, now); err != nil {
		return nil, err
	}
	if err := s.db.ClearPendingLimitChange(goal.ID); err != nil {
		return nil, err
	}
	goal.BaseDailyLimit = minutes
	return goal, nil
}

func (s *Service) requireGoal(appIdentifier string) (*domain.Goal, error) {
	goal, err := s.db.GoalByApp(appIdentifier)
	if err != nil {
		return nil, err
	}
	if goal == nil || !goal.IsActive {
		return nil, domain.ErrGoalNotFound
	}
	return goal, nil
}
