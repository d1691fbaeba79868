package domain

import (
	"testing"
	"time"
)

func TestStartOfWeek(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2025, 6, 11, 15, 30, 0, 0, time.Local), time.Date(2025, 6, 9, 0, 0, 0, 0, time.Local)},
		{"monday itself", time.Date(2025, 6, 9, 1, 0, 0, 0, time.Local), time.Date(2025, 6, 9, 0, 0, 0, 0, time.Local)},
		{"sunday", time.Date(2025, 6, 15, 23, 59, 0, 0, time.Local), time.Date(2025, 6, 9, 0, 0, 0, 0, time.Local)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StartOfWeek(tc.in); !got.Equal(tc.want) {
				t.Errorf("StartOfWeek(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestEndOfWeek(t *testing.T) {
	in := time.Date(2025, 6, 11, 15, 30, 0, 0, time.Local)
	got := EndOfWeek(in)
	if got.Weekday() != time.Sunday {
		t.Errorf("EndOfWeek lands on %s, want Sunday", got.Weekday())
	}
	if !StartOfWeek(in).Before(got) {
		t.Error("week end must follow week start")
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 6, 11, 0, 1, 0, 0, time.Local)
	b := time.Date(2025, 6, 11, 23, 59, 0, 0, time.Local)
	c := time.Date(2025, 6, 12, 0, 0, 1, 0, time.Local)

	if !SameDay(a, b) {
		t.Error("same calendar day reported different")
	}
	if SameDay(b, c) {
		t.Error("midnight crossing reported same day")
	}
	if SameDay(time.Time{}, a) {
		t.Error("zero time must never match a real day")
	}
}

func TestWeeklyPeriod_State(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.Local)
	p := WeeklyPeriod{CreditsRemaining: CreditsFull}

	if got := p.State(now); got != FeeOK {
		t.Errorf("full credits state = %s, want %s", got, FeeOK)
	}

	p.CreditsRemaining = 0
	if got := p.State(now); got != FeePending {
		t.Errorf("zero credits state = %s, want %s", got, FeePending)
	}

	p.CreditsRemaining = CreditsFull
	p.FeePaidDate = now.Add(-2 * time.Hour)
	if got := p.State(now); got != FeePaid {
		t.Errorf("paid-today state = %s, want %s", got, FeePaid)
	}

	// The paid marker only shields the day it was set.
	if got := p.State(now.AddDate(0, 0, 1)); got != FeeOK {
		t.Errorf("day-after state = %s, want %s", got, FeeOK)
	}
}

func TestExtension_TodayOnlyScope(t *testing.T) {
	granted := time.Date(2025, 6, 11, 9, 0, 0, 0, time.Local)
	e := Extension{Minutes: 15, GrantedAt: granted}

	if !e.Active(granted.Add(8 * time.Hour)) {
		t.Error("today-only grant inactive on its own day")
	}
	if e.Active(granted.AddDate(0, 0, 1)) {
		t.Error("today-only grant survived midnight")
	}
}

func TestISOWeek(t *testing.T) {
	// Week boundaries around a year change keep distinct keys.
	dec := time.Date(2025, 12, 29, 0, 0, 0, 0, time.Local) // ISO week 1 of 2026
	jan := time.Date(2026, 1, 4, 0, 0, 0, 0, time.Local)   // same ISO week
	if ISOWeek(dec) != ISOWeek(jan) {
		t.Errorf("ISOWeek(%v)=%s and ISOWeek(%v)=%s should match", dec, ISOWeek(dec), jan, ISOWeek(jan))
	}
	next := time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local)
	if ISOWeek(jan) == ISOWeek(next) {
		t.Error("consecutive ISO weeks share a key")
	}
}
