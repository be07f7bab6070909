package auth

import (
	"testing"
	"time"
)

func at(t *testing.T, loc *time.Location, weekday time.Weekday, hhmm string) time.Time {
	t.Helper()
	// 2026-03-02 is a Monday
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	for base.Weekday() != weekday {
		base = base.AddDate(0, 0, 1)
	}
	minutes, err := clockMinutes(hhmm)
	if err != nil {
		t.Fatalf("bad test time %q: %v", hhmm, err)
	}
	return base.Add(time.Duration(minutes) * time.Minute)
}

func TestWithinShiftOvernight(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	shift := ShiftWindow{Start: "22:00", End: "06:00"}

	cases := []struct {
		name   string
		now    time.Time
		inside bool
	}{
		{"late evening", at(t, loc, time.Monday, "23:30"), true},
		{"early morning", at(t, loc, time.Tuesday, "05:00"), true},
		{"midday", at(t, loc, time.Monday, "12:00"), false},
		{"exact start", at(t, loc, time.Monday, "22:00"), true},
		{"exact end", at(t, loc, time.Tuesday, "06:00"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinShift(tc.now, loc, shift); got != tc.inside {
				t.Fatalf("WithinShift(%s) = %v, want %v", tc.now.Format("Mon 15:04"), got, tc.inside)
			}
		})
	}
}

func TestWithinShiftSameDay(t *testing.T) {
	loc := time.UTC
	shift := ShiftWindow{Start: "09:00", End: "17:00"}

	cases := []struct {
		name   string
		now    time.Time
		inside bool
	}{
		{"inclusive start", at(t, loc, time.Wednesday, "09:00"), true},
		{"exclusive end", at(t, loc, time.Wednesday, "17:00"), false},
		{"just before start", at(t, loc, time.Wednesday, "08:59"), false},
		{"middle", at(t, loc, time.Wednesday, "13:00"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinShift(tc.now, loc, shift); got != tc.inside {
				t.Fatalf("WithinShift(%s) = %v, want %v", tc.now.Format("15:04"), got, tc.inside)
			}
		})
	}
}

func TestWithinShiftRestDay(t *testing.T) {
	loc := time.UTC
	shift := ShiftWindow{
		Start:    "09:00",
		End:      "17:00",
		RestDays: ParseRestDays([]int{int(time.Friday)}),
	}

	if WithinShift(at(t, loc, time.Friday, "12:00"), loc, shift) {
		t.Fatal("rest day must block the whole day")
	}
	if !WithinShift(at(t, loc, time.Thursday, "12:00"), loc, shift) {
		t.Fatal("non-rest day inside the window must pass")
	}
}

func TestNextShiftStart(t *testing.T) {
	loc := time.UTC
	shift := ShiftWindow{
		Start:    "09:00",
		End:      "17:00",
		RestDays: ParseRestDays([]int{int(time.Saturday)}),
	}

	now := at(t, loc, time.Friday, "18:00")
	next, ok := NextShiftStart(now, loc, shift)
	if !ok {
		t.Fatal("expected a next shift start")
	}
	// Saturday is a rest day, so the next start is Sunday 09:00.
	if next.Weekday() != time.Sunday || next.Hour() != 9 || next.Minute() != 0 {
		t.Fatalf("next shift start = %s, want Sunday 09:00", next.Format("Mon 15:04"))
	}

	// Before today's start, the next start is today.
	now = at(t, loc, time.Monday, "07:00")
	next, ok = NextShiftStart(now, loc, shift)
	if !ok || next.Weekday() != time.Monday || next.Hour() != 9 {
		t.Fatalf("next shift start = %s, want Monday 09:00", next.Format("Mon 15:04"))
	}

	allRest := ShiftWindow{Start: "09:00", End: "17:00", RestDays: ParseRestDays([]int{0, 1, 2, 3, 4, 5, 6})}
	if _, ok := NextShiftStart(now, loc, allRest); ok {
		t.Fatal("expected no next shift when every day is a rest day")
	}
}

func TestLateForShift(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	cases := []struct {
		name  string
		shift ShiftWindow
		now   time.Time
		late  bool
	}{
		{"same day on time", ShiftWindow{Start: "09:00", End: "17:00"}, at(t, loc, time.Monday, "09:00"), false},
		{"same day early", ShiftWindow{Start: "09:00", End: "17:00"}, at(t, loc, time.Monday, "08:30"), false},
		{"same day late", ShiftWindow{Start: "09:00", End: "17:00"}, at(t, loc, time.Monday, "09:15"), true},
		{"overnight on time", ShiftWindow{Start: "22:00", End: "06:00"}, at(t, loc, time.Monday, "22:00"), false},
		{"overnight same evening late", ShiftWindow{Start: "22:00", End: "06:00"}, at(t, loc, time.Monday, "22:45"), true},
		{"overnight past midnight late", ShiftWindow{Start: "22:00", End: "06:00"}, at(t, loc, time.Tuesday, "01:30"), true},
		{"overnight midday not late", ShiftWindow{Start: "22:00", End: "06:00"}, at(t, loc, time.Monday, "12:00"), false},
		{"no end falls back to start", ShiftWindow{Start: "09:00"}, at(t, loc, time.Monday, "10:00"), true},
		{"malformed start never late", ShiftWindow{Start: "corrupt"}, at(t, loc, time.Monday, "10:00"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LateForShift(tc.now, loc, tc.shift); got != tc.late {
				t.Fatalf("LateForShift(%s) = %v, want %v", tc.now.Format("Mon 15:04"), got, tc.late)
			}
		})
	}
}
