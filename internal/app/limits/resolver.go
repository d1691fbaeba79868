package limits

import (
	"time"

	"github.com/tally-app/tally/internal/domain"
)

// Outcome labels which rule decided an effective limit. Exported for
// metrics and for the API's explain field.
type Outcome string

const (
	OutcomeBase          Outcome = "base"
	OutcomeBlocked       Outcome = "blocked" // base 0, nothing overrides it
	OutcomeExtended      Outcome = "extended"
	OutcomeRestricted    Outcome = "restricted"
	OutcomeSessionPinned Outcome = "session_pinned"
	OutcomeExtraTime     Outcome = "extra_time"
)

// Resolve computes the effective daily limit for a goal at now. Pure:
// expired overrides must be purged by the caller beforehand; Resolve
// simply ignores anything inactive.
//
// Precedence, highest first:
//  1. one-session pins the limit to the base exactly — "one session"
//     means the original allowance, no bonuses.
//  2. extra-time adds its grant (default 15) plus stacked extensions.
//  3. base + stacked extensions + any per-day extended limit.
//  4. an active restriction caps/replaces that sum, but extension
//     minutes still stack on top of the restriction's cap.
func Resolve(goal domain.Goal, ov domain.OverrideSet, usage *domain.UsageRecord, now time.Time) (int, Outcome) {
	extension := ov.ActiveExtensionMinutes(now)

	if ov.Session != nil && ov.Session.Active(now) {
		switch ov.Session.Kind {
		case domain.SessionOneSession:
			return goal.BaseDailyLimit, OutcomeSessionPinned
		case domain.SessionExtraTime:
			grant := ov.Session.Minutes
			if grant <= 0 {
				grant = domain.DefaultExtraTimeMinutes
			}
			return goal.BaseDailyLimit + grant + extension, OutcomeExtraTime
		}
	}

	candidate := goal.BaseDailyLimit + extension
	if usage != nil && usage.ExtendedLimit > 0 {
		candidate += usage.ExtendedLimit
	}

	if ov.Restriction != nil && !ov.Restriction.Expired(now) {
		limit := ov.Restriction.Limit
		if limit < 0 {
			limit = 0
		}
		return limit + extension, OutcomeRestricted
	}

	if candidate <= 0 {
		// Base limit 0 is the deliberate "always blocked" sentinel.
		return 0, OutcomeBlocked
	}
	if candidate != goal.BaseDailyLimit {
		return candidate, OutcomeExtended
	}
	return candidate, OutcomeBase
}
