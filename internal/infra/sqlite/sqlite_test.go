package sqlite

import (
	"testing"
	"time"

	"github.com/tally-app/tally/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.Local)

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	db.Close()

	// Reopening the same directory re-runs migrations over existing tables.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

// ─── Goals ──────────────────────────────────────────────────────────────────

func TestGoalByApp_AbsentIsNil(t *testing.T) {
	db := newTestDB(t)

	g, err := db.GoalByApp("never.seen")
	if err != nil {
		t.Fatalf("GoalByApp() error: %v", err)
	}
	if g != nil {
		t.Errorf("absent goal = %+v, want nil", g)
	}
}

func TestUpsertGoal_ConflictOnApp(t *testing.T) {
	db := newTestDB(t)

	g := domain.Goal{
		ID: "g1", AppIdentifier: "games.example", DisplayName: "Games",
		BaseDailyLimit: 60, IsActive: true, UpdatedAt: testNow,
	}
	if err := db.UpsertGoal(g); err != nil {
		t.Fatalf("UpsertGoal() error: %v", err)
	}

	g.DisplayName = "Games v2"
	g.BaseDailyLimit = 45
	if err := db.UpsertGoal(g); err != nil {
		t.Fatalf("second UpsertGoal() error: %v", err)
	}

	got, _ := db.GoalByApp("games.example")
	if got == nil || got.DisplayName != "Games v2" || got.BaseDailyLimit != 45 {
		t.Errorf("goal after upsert = %+v", got)
	}

	goals, _ := db.ListGoals(true)
	if len(goals) != 1 {
		t.Errorf("goal count = %d, want 1 (upsert, not insert)", len(goals))
	}
}

func TestSetBaseLimit_UnknownGoal(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetBaseLimit("never.seen", 30, testNow); err != domain.ErrGoalNotFound {
		t.Errorf("SetBaseLimit(unknown) = %v, want ErrGoalNotFound", err)
	}
}

// ─── Overrides ──────────────────────────────────────────────────────────────

func TestOverridesFor_AssemblesAllThree(t *testing.T) {
	db := newTestDB(t)

	ext := domain.Extension{ID: "e1", GoalID: "g1", Minutes: 15, GrantedAt: testNow}
	if err := db.InsertExtension(ext); err != nil {
		t.Fatalf("InsertExtension() error: %v", err)
	}
	if err := db.SetRestriction(domain.RestrictionWindow{
		GoalID: "g1", Period: domain.RestrictDaily, Limit: 20, StartDate: testNow,
	}); err != nil {
		t.Fatalf("SetRestriction() error: %v", err)
	}
	if err := db.SetSessionMode(domain.SessionMode{
		GoalID: "g1", Kind: domain.SessionOneSession, ActivatedAt: testNow,
	}); err != nil {
		t.Fatalf("SetSessionMode() error: %v", err)
	}

	ov, err := db.OverridesFor("g1")
	if err != nil {
		t.Fatalf("OverridesFor() error: %v", err)
	}
	if len(ov.Extensions) != 1 || ov.Extensions[0].Minutes != 15 {
		t.Errorf("extensions = %+v", ov.Extensions)
	}
	if ov.Restriction == nil || ov.Restriction.Limit != 20 {
		t.Errorf("restriction = %+v", ov.Restriction)
	}
	if ov.Session == nil || ov.Session.Kind != domain.SessionOneSession {
		t.Errorf("session = %+v", ov.Session)
	}
	// Today-only grants come back with a zero expiry, not a fake date.
	if !ov.Extensions[0].ExpiresAt.IsZero() {
		t.Errorf("today-only grant expiry = %v, want zero", ov.Extensions[0].ExpiresAt)
	}
}

func TestDeleteElapsedExtensions(t *testing.T) {
	db := newTestDB(t)

	keep := domain.Extension{ID: "e1", GoalID: "g1", Minutes: 10, GrantedAt: testNow}
	timed := domain.Extension{ID: "e2", GoalID: "g1", Minutes: 10, GrantedAt: testNow.Add(-2 * time.Hour), ExpiresAt: testNow.Add(-time.Hour)}
	stale := domain.Extension{ID: "e3", GoalID: "g1", Minutes: 10, GrantedAt: testNow.AddDate(0, 0, -2)}
	for _, e := range []domain.Extension{keep, timed, stale} {
		if err := db.InsertExtension(e); err != nil {
			t.Fatalf("InsertExtension(%s) error: %v", e.ID, err)
		}
	}

	n, err := db.DeleteElapsedExtensions(testNow)
	if err != nil {
		t.Fatalf("DeleteElapsedExtensions() error: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}

	ov, _ := db.OverridesFor("g1")
	if len(ov.Extensions) != 1 || ov.Extensions[0].ID != "e1" {
		t.Errorf("surviving extensions = %+v, want only e1", ov.Extensions)
	}
}

func TestDeleteExpiredSessionModes_SparesOneSession(t *testing.T) {
	db := newTestDB(t)

	db.SetSessionMode(domain.SessionMode{
		GoalID: "g1", Kind: domain.SessionOneSession, ActivatedAt: testNow.AddDate(0, 0, -3),
	})
	db.SetSessionMode(domain.SessionMode{
		GoalID: "g2", Kind: domain.SessionExtraTime,
		ActivatedAt: testNow.Add(-time.Hour), ExpiresAt: testNow.Add(-30 * time.Minute), Minutes: 15,
	})

	if _, err := db.DeleteExpiredSessionModes(testNow); err != nil {
		t.Fatalf("DeleteExpiredSessionModes() error: %v", err)
	}

	if m, _ := db.sessionModeFor("g1"); m == nil {
		t.Error("one-session mode must never time out")
	}
	if m, _ := db.sessionModeFor("g2"); m != nil {
		t.Error("expired extra-time mode should be purged")
	}
}

// ─── Shared State ───────────────────────────────────────────────────────────

func TestShared_LastWriterWins(t *testing.T) {
	db := newTestDB(t)

	db.SetShared("k", "first", testNow)
	db.SetShared("k", "second", testNow.Add(time.Minute))

	v, ok, err := db.GetShared("k")
	if err != nil {
		t.Fatalf("GetShared() error: %v", err)
	}
	if !ok || v != "second" {
		t.Errorf("GetShared() = (%q, %v), want (second, true)", v, ok)
	}

	last, _ := db.LastSharedUpdate()
	if !last.Equal(testNow.Add(time.Minute).Truncate(time.Second)) {
		t.Errorf("LastSharedUpdate() = %v, want %v", last, testNow.Add(time.Minute))
	}
}

func TestShared_AbsentIsNotZero(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.DailyScreenTime("2025-06-11")
	if err != nil {
		t.Fatalf("DailyScreenTime() error: %v", err)
	}
	if ok {
		t.Error("absent screen time reported ok=true")
	}
}

func TestIncrPuzzlesSolved(t *testing.T) {
	db := newTestDB(t)

	for want := 1; want <= 3; want++ {
		n, err := db.IncrPuzzlesSolved("2025-06-11", testNow)
		if err != nil {
			t.Fatalf("IncrPuzzlesSolved() error: %v", err)
		}
		if n != want {
			t.Errorf("count = %d, want %d", n, want)
		}
	}
	// Separate day, separate counter.
	if n, _ := db.PuzzlesSolved("2025-06-12"); n != 0 {
		t.Errorf("other day count = %d, want 0", n)
	}
}

func TestPruneShared_DropsOldDayKeys(t *testing.T) {
	db := newTestDB(t)

	db.SetDailyScreenTime("2025-05-01", 100, testNow)
	db.SetDailyScreenTime("2025-06-11", 50, testNow)
	db.SetAppUsage("2025-05-01", "games.example", 40, testNow)
	db.SetShared("pending_limit:g1", "90", testNow) // not day-scoped, must survive

	if _, err := db.PruneShared("2025-06-01"); err != nil {
		t.Fatalf("PruneShared() error: %v", err)
	}

	if _, ok, _ := db.DailyScreenTime("2025-05-01"); ok {
		t.Error("old screen time survived the prune")
	}
	if _, ok, _ := db.DailyScreenTime("2025-06-11"); !ok {
		t.Error("recent screen time was pruned")
	}
	if _, ok, _ := db.GetShared("pending_limit:g1"); !ok {
		t.Error("non-day-scoped key was pruned")
	}
}

// ─── Achievements ───────────────────────────────────────────────────────────

func TestUnlockAchievement_Idempotent(t *testing.T) {
	db := newTestDB(t)

	isNew, err := db.UnlockAchievement("first_goal", testNow)
	if err != nil {
		t.Fatalf("UnlockAchievement() error: %v", err)
	}
	if !isNew {
		t.Error("first unlock should report new")
	}

	isNew, err = db.UnlockAchievement("first_goal", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("repeat UnlockAchievement() error: %v", err)
	}
	if isNew {
		t.Error("repeat unlock should not report new")
	}

	unlocked, _ := db.ListUnlockedAchievements()
	if len(unlocked) != 1 {
		t.Errorf("unlocked count = %d, want 1", len(unlocked))
	}
	// The original unlock time is preserved.
	if !unlocked[0].UnlockedAt.Equal(testNow.Truncate(time.Second)) {
		t.Errorf("unlock time = %v, want %v", unlocked[0].UnlockedAt, testNow)
	}
}
