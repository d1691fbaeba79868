package domain

import "time"

// ─── Streak Types ───────────────────────────────────────────────────────────

// ActivityHistoryDays is how long the per-day blocked-activity history is
// retained before pruning.
const ActivityHistoryDays = 14

// Streak tracks consecutive days with at least one actively-blocked app.
// Mutated once per day at the daily-reset checkpoint; LastClosed guards
// against closing the same day twice.
type Streak struct {
	CurrentDays int       `json:"current_days"`
	LongestDays int       `json:"longest_days"`
	LastClosed  time.Time `json:"last_closed,omitzero"`
}

// ─── Pet Health Types ───────────────────────────────────────────────────────

// PetMood is the discrete well-being scale derived from the health score.
type PetMood string

const (
	MoodFullHealth PetMood = "fullHealth" // score 90..100
	MoodHappy      PetMood = "happy"      // 70..89
	MoodContent    PetMood = "content"    // 50..69
	MoodSad        PetMood = "sad"        // 20..49
	MoodSick       PetMood = "sick"       // 0..19
)

// HealthEntry is one day's recorded pet health snapshot.
type HealthEntry struct {
	Date  time.Time `json:"date"`
	Score int       `json:"score"`
	Mood  PetMood   `json:"mood"`
}

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementCategory groups achievements by theme.
type AchievementCategory string

const (
	CatGettingStarted AchievementCategory = "getting_started"
	CatStreaks        AchievementCategory = "streaks"
	CatDiscipline     AchievementCategory = "discipline"
	CatPet            AchievementCategory = "pet"
)

// AchievementDef defines a single achievement. The predicate is a pure
// function of the snapshot — no captured mutable state.
type AchievementDef struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Category  AchievementCategory `json:"category"`
	Predicate func(Snapshot) bool `json:"-"`
}

// UnlockedAchievement records when an achievement was earned.
type UnlockedAchievement struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Snapshot is the immutable read-only state fed to achievement
// predicates. UsageDataLoaded distinguishes "no data yet" from genuine
// zero usage: the shared usage feed is last-writer-wins across the
// process boundary, and low-usage achievements must not fire before the
// enforcement collaborator has reported anything.
type Snapshot struct {
	CurrentStreak    int             `json:"current_streak"`
	LongestStreak    int             `json:"longest_streak"`
	CreditsRemaining int             `json:"credits_remaining"`
	FeePaidToday     bool            `json:"fee_paid_today"`
	FeesPaidTotal    int             `json:"fees_paid_total"`
	ActiveGoals      int             `json:"active_goals"`
	HistoryDays      int             `json:"history_days"`
	PetScore         int             `json:"pet_score"`
	PetMood          PetMood         `json:"pet_mood"`
	UsageRatio       float64         `json:"usage_ratio"`
	UsageDataLoaded  bool            `json:"usage_data_loaded"`
	PuzzlesSolved    int             `json:"puzzles_solved"`
	Unlocked         map[string]bool `json:"-"`
}
