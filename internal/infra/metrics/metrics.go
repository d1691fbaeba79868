// Package metrics provides Prometheus metrics for Tally: counters and
// gauges for the accountability ledger, limit resolution, usage intake,
// and the gamification layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger ─────────────────────────────────────────────────────────────────

// CreditsBalance tracks the current credit balance (0 or 7 under the
// flat accountability-fee model).
var CreditsBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tally",
	Name:      "credits_balance_current",
	Help:      "Current accountability credit balance.",
})

// BreachesReported tracks reported limit breaches, charged or free.
var BreachesReported = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tally",
	Name:      "breaches_reported_total",
	Help:      "Total limit breaches reported.",
})

// FeesPaid tracks accountability fee payments.
var FeesPaid = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tally",
	Name:      "fees_paid_total",
	Help:      "Total accountability fees paid.",
})

// ResetsRun tracks boundary normalizations by kind (daily, weekly).
var ResetsRun = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Name:      "resets_run_total",
	Help:      "Total boundary resets applied.",
}, []string{"kind"})

// ─── Limits ─────────────────────────────────────────────────────────────────

// LimitResolutions tracks effective-limit computations by outcome
// (base, extended, restricted, session_pinned, extra_time, blocked).
var LimitResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tally",
	Name:      "limit_resolutions_total",
	Help:      "Total effective-limit resolutions by outcome.",
}, []string{"outcome"})

// UsageReports tracks usage reports received from the enforcement
// collaborator.
var UsageReports = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tally",
	Name:      "usage_reports_total",
	Help:      "Total usage reports received.",
})

// ─── Engagement ─────────────────────────────────────────────────────────────

// StreakDays tracks the current streak length.
var StreakDays = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tally",
	Name:      "streak_days_current",
	Help:      "Current streak length in days.",
})

// PetHealthScore tracks the latest pet health score (0-100).
var PetHealthScore = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tally",
	Name:      "pet_health_score",
	Help:      "Latest pet health score (0-100).",
})

// AchievementsUnlocked tracks lifetime achievement unlocks.
var AchievementsUnlocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tally",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "tally",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
