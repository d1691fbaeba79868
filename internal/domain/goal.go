package domain

import "time"

// Goal is a monitored app and its base daily time budget.
// A base limit of 0 is the "always blocked" sentinel: the app stays
// blocked unless a session mode or extension overrides it. Not an error.
type Goal struct {
	ID             string    `json:"id"`
	AppIdentifier  string    `json:"app_identifier"` // opaque platform app token
	DisplayName    string    `json:"display_name"`
	BaseDailyLimit int       `json:"base_daily_limit_minutes"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UsageRecord is the per-(goal, day) usage tally, created on the first
// usage report of the day and updated thereafter.
type UsageRecord struct {
	ID             string    `json:"id"`
	GoalID         string    `json:"goal_id"`
	Date           time.Time `json:"date"` // local midnight
	ActualMinutes  int       `json:"actual_usage_minutes"`
	DidExceedLimit bool      `json:"did_exceed_limit"`
	// ExtendedLimit carries a one-off per-day bonus layered by legacy
	// extension flows. Zero means none.
	ExtendedLimit int `json:"extended_limit_minutes,omitempty"`
}
