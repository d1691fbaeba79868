package limits

import (
	"errors"
	"testing"
	"time"

	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeBreachSink struct{ breaches []string }

func (f *fakeBreachSink) ReportBreach(goalID string) (domain.Transaction, error) {
	f.breaches = append(f.breaches, goalID)
	return domain.Transaction{Type: domain.TxBreach}, nil
}

type fakeMarker struct{ marks int }

func (f *fakeMarker) MarkDayActivity(day time.Time, hasBlockedApps bool) error {
	f.marks++
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeClock, *fakeBreachSink, *fakeMarker) {
	t.Helper()
	clock := &fakeClock{now: noon}
	sink := &fakeBreachSink{}
	marker := &fakeMarker{}
	svc := NewService(newTestDB(t), clock, nil, sink, marker)
	return svc, clock, sink, marker
}

// ─── Goal Commands ──────────────────────────────────────────────────────────

func TestService_CreateGoalDuplicate(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.CreateGoal("games.example", "Games", 60); err != nil {
		t.Fatalf("CreateGoal() error: %v", err)
	}
	if _, err := svc.CreateGoal("games.example", "Games again", 30); !errors.Is(err, domain.ErrGoalExists) {
		t.Errorf("duplicate CreateGoal() = %v, want ErrGoalExists", err)
	}
}

func TestService_ReactivateKeepsIdentity(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	g1, _ := svc.CreateGoal("games.example", "Games", 60)
	if err := svc.DeactivateGoal("games.example"); err != nil {
		t.Fatalf("DeactivateGoal() error: %v", err)
	}
	g2, err := svc.CreateGoal("games.example", "Games", 45)
	if err != nil {
		t.Fatalf("re-create error: %v", err)
	}
	if g2.ID != g1.ID {
		t.Errorf("reactivated goal id = %s, want %s (history must stay attached)", g2.ID, g1.ID)
	}
	if g2.BaseDailyLimit != 45 {
		t.Errorf("reactivated limit = %d, want 45", g2.BaseDailyLimit)
	}
}

func TestService_RaisingLimitWaitsForTomorrow(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	staged, err := svc.SetBaseLimit("games.example", 120)
	if err != nil {
		t.Fatalf("SetBaseLimit() error: %v", err)
	}
	if !staged {
		t.Fatal("a raise should be staged, not applied")
	}

	minutes, _, _ := svc.EffectiveLimit("games.example")
	if minutes != 60 {
		t.Errorf("effective today = %d, want 60 (raise deferred)", minutes)
	}

	clock.now = clock.now.AddDate(0, 0, 1)
	minutes, _, _ = svc.EffectiveLimit("games.example")
	if minutes != 120 {
		t.Errorf("effective tomorrow = %d, want 120", minutes)
	}
}

func TestService_LoweringLimitAppliesNow(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	staged, err := svc.SetBaseLimit("games.example", 30)
	if err != nil {
		t.Fatalf("SetBaseLimit() error: %v", err)
	}
	if staged {
		t.Fatal("a cut should apply immediately")
	}
	minutes, _, _ := svc.EffectiveLimit("games.example")
	if minutes != 30 {
		t.Errorf("effective after cut = %d, want 30", minutes)
	}
}

func TestService_CutCancelsStagedRaise(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	svc.SetBaseLimit("games.example", 120) // staged
	svc.SetBaseLimit("games.example", 30)  // immediate, moots the raise

	clock.now = clock.now.AddDate(0, 0, 1)
	minutes, _, _ := svc.EffectiveLimit("games.example")
	if minutes != 30 {
		t.Errorf("effective after cut+day = %d, want 30 (raise cancelled)", minutes)
	}
}

// ─── Effective Limit ────────────────────────────────────────────────────────

func TestService_EffectiveLimitUnknownApp(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, _, err := svc.EffectiveLimit("never.seen"); !errors.Is(err, domain.ErrGoalNotFound) {
		t.Errorf("EffectiveLimit(unknown) = %v, want ErrGoalNotFound", err)
	}
}

func TestService_EffectiveLimitWithExtension(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	if _, err := svc.GrantExtension("games.example", 20, 0); err != nil {
		t.Fatalf("GrantExtension() error: %v", err)
	}

	minutes, outcome, err := svc.EffectiveLimit("games.example")
	if err != nil {
		t.Fatalf("EffectiveLimit() error: %v", err)
	}
	if minutes != 80 || outcome != OutcomeExtended {
		t.Errorf("effective = (%d, %s), want (80, %s)", minutes, outcome, OutcomeExtended)
	}
}

func TestService_TodayOnlyExtensionLapsesOvernight(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)
	svc.GrantExtension("games.example", 20, 0)

	clock.now = clock.now.AddDate(0, 0, 1)

	minutes, outcome, err := svc.EffectiveLimit("games.example")
	if err != nil {
		t.Fatalf("EffectiveLimit() error: %v", err)
	}
	if minutes != 60 || outcome != OutcomeBase {
		t.Errorf("next-day effective = (%d, %s), want (60, %s)", minutes, outcome, OutcomeBase)
	}

	// The lapsed grant is gone from storage, not just ignored.
	ov, err := svc.Overrides("games.example")
	if err != nil {
		t.Fatalf("Overrides() error: %v", err)
	}
	if len(ov.Extensions) != 0 {
		t.Errorf("stored extensions after lapse = %d, want 0", len(ov.Extensions))
	}
}

func TestService_OneTimeRestrictionExpires(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	win, err := svc.SetRestriction("games.example", domain.RestrictOneTime, 15)
	if err != nil {
		t.Fatalf("SetRestriction() error: %v", err)
	}
	if win.EndDate.IsZero() {
		t.Fatal("one-time restriction needs an end date")
	}

	minutes, outcome, _ := svc.EffectiveLimit("games.example")
	if minutes != 15 || outcome != OutcomeRestricted {
		t.Fatalf("restricted effective = (%d, %s), want (15, %s)", minutes, outcome, OutcomeRestricted)
	}

	clock.now = clock.now.AddDate(0, 0, 2)
	minutes, outcome, _ = svc.EffectiveLimit("games.example")
	if minutes != 60 || outcome != OutcomeBase {
		t.Errorf("post-expiry effective = (%d, %s), want (60, %s)", minutes, outcome, OutcomeBase)
	}
}

func TestService_SessionModeRoundTrip(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	if _, err := svc.ActivateSessionMode("games.example", domain.SessionOneSession, 0); err != nil {
		t.Fatalf("ActivateSessionMode() error: %v", err)
	}
	minutes, outcome, _ := svc.EffectiveLimit("games.example")
	if minutes != 60 || outcome != OutcomeSessionPinned {
		t.Fatalf("pinned effective = (%d, %s), want (60, %s)", minutes, outcome, OutcomeSessionPinned)
	}

	// App closed: enforcement reports mode none.
	if _, err := svc.ActivateSessionMode("games.example", domain.SessionNone, 0); err != nil {
		t.Fatalf("clear session error: %v", err)
	}
	_, outcome, _ = svc.EffectiveLimit("games.example")
	if outcome != OutcomeBase {
		t.Errorf("outcome after close = %s, want %s", outcome, OutcomeBase)
	}
}

func TestService_UnknownSessionMode(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CreateGoal("games.example", "Games", 60)

	if _, err := svc.ActivateSessionMode("games.example", "turbo", 0); !errors.Is(err, domain.ErrUnknownSessionMode) {
		t.Errorf("ActivateSessionMode(turbo) = %v, want ErrUnknownSessionMode", err)
	}
}

// ─── Usage Intake ───────────────────────────────────────────────────────────

func TestService_ReportUsageChargesBreach(t *testing.T) {
	svc, _, sink, marker := newTestService(t)
	g, _ := svc.CreateGoal("games.example", "Games", 60)

	if err := svc.ReportUsage("games.example", 45, false); err != nil {
		t.Fatalf("ReportUsage() error: %v", err)
	}
	if len(sink.breaches) != 0 {
		t.Errorf("within-limit report charged %d breaches, want 0", len(sink.breaches))
	}
	if marker.marks != 1 {
		t.Errorf("activity marks = %d, want 1", marker.marks)
	}

	if err := svc.ReportUsage("games.example", 75, true); err != nil {
		t.Fatalf("exceeded ReportUsage() error: %v", err)
	}
	if len(sink.breaches) != 1 || sink.breaches[0] != g.ID {
		t.Errorf("breaches = %v, want [%s]", sink.breaches, g.ID)
	}
}

func TestService_ReportUsageExceededFlagSticks(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	g, _ := svc.CreateGoal("games.example", "Games", 60)
	db := svc.db

	svc.ReportUsage("games.example", 75, true)
	svc.ReportUsage("games.example", 80, false) // later correction, same day

	rec, err := db.UsageFor(g.ID, clock.now)
	if err != nil {
		t.Fatalf("UsageFor() error: %v", err)
	}
	if rec == nil {
		t.Fatal("usage record missing")
	}
	if rec.ActualMinutes != 80 {
		t.Errorf("minutes = %d, want 80", rec.ActualMinutes)
	}
	if !rec.DidExceedLimit {
		t.Error("exceeded flag must stay set once tripped")
	}
}

func TestService_ReportUsageUnknownApp(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if err := svc.ReportUsage("never.seen", 10, false); !errors.Is(err, domain.ErrGoalNotFound) {
		t.Errorf("ReportUsage(unknown) = %v, want ErrGoalNotFound", err)
	}
}
