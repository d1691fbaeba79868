package domain

import "time"

// ─── Override Types ─────────────────────────────────────────────────────────
// Overrides layer on top of a goal's base limit. Extensions stack; at most
// one restriction window and one session mode exist per goal.

// Extension is a temporary bonus to a goal's limit, typically puzzle-earned.
// A zero ExpiresAt means "today only": the grant lapses at the next
// midnight after GrantedAt.
type Extension struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	Minutes   int       `json:"granted_minutes"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Active reports whether the extension still applies at now.
func (e Extension) Active(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return SameDay(e.GrantedAt, now)
	}
	return now.Before(e.ExpiresAt)
}

// RestrictionPeriod scopes a restriction window.
type RestrictionPeriod string

const (
	RestrictDaily   RestrictionPeriod = "daily"    // standing, re-evaluated each day
	RestrictWeekly  RestrictionPeriod = "weekly"   // expires after 7 days
	RestrictOneTime RestrictionPeriod = "one-time" // expires at the next midnight
)

// RestrictionWindow caps or replaces a goal's limit for its period.
type RestrictionWindow struct {
	GoalID    string            `json:"goal_id"`
	Period    RestrictionPeriod `json:"period"`
	Limit     int               `json:"limit_minutes"`
	StartDate time.Time         `json:"start_date"`
	EndDate   time.Time         `json:"end_date,omitzero"` // unset for daily
}

// Expired reports whether a weekly or one-time window has passed its end.
// Daily restrictions never expire.
func (r RestrictionWindow) Expired(now time.Time) bool {
	if r.Period == RestrictDaily || r.EndDate.IsZero() {
		return false
	}
	return now.After(r.EndDate)
}

// SessionModeKind selects the short-lived unlock behavior.
type SessionModeKind string

const (
	SessionNone       SessionModeKind = "none"
	SessionExtraTime  SessionModeKind = "extra-time"  // adds minutes, timed expiry
	SessionOneSession SessionModeKind = "one-session" // pins to base limit until app closes
)

// DefaultExtraTimeMinutes applies when an extra-time session carries no
// explicit minute grant.
const DefaultExtraTimeMinutes = 15

// SessionMode is the at-most-one active unlock mode per goal.
// One-session has no expiry: it ends when the enforcement collaborator
// reports the app closed (mode set back to none).
type SessionMode struct {
	GoalID      string          `json:"goal_id"`
	Kind        SessionModeKind `json:"mode"`
	ActivatedAt time.Time       `json:"activated_at"`
	ExpiresAt   time.Time       `json:"expires_at,omitzero"`
	Minutes     int             `json:"minutes,omitempty"` // extra-time grant
}

// Active reports whether the mode still applies at now.
func (m SessionMode) Active(now time.Time) bool {
	switch m.Kind {
	case SessionOneSession:
		return true // until app closed
	case SessionExtraTime:
		return m.ExpiresAt.IsZero() || now.Before(m.ExpiresAt)
	default:
		return false
	}
}

// OverrideSet is the full typed override record for one goal, read and
// written as a unit so the enforcement collaborator never observes a
// half-updated key sprawl.
type OverrideSet struct {
	GoalID      string             `json:"goal_id"`
	Extensions  []Extension        `json:"extensions,omitempty"`
	Restriction *RestrictionWindow `json:"restriction,omitempty"`
	Session     *SessionMode       `json:"session,omitempty"`
}

// ActiveExtensionMinutes sums extension minutes still active at now.
func (o OverrideSet) ActiveExtensionMinutes(now time.Time) int {
	total := 0
	for _, e := range o.Extensions {
		if e.Active(now) {
			total += e.Minutes
		}
	}
	return total
}
