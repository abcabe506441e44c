package schedule

import (
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func testCycle(t *testing.T) WorkCycle {
	loc := mustLoadLoc(t)
	return DefaultCycle(time.Date(2024, 12, 9, 0, 0, 0, 0, loc))
}

func TestIsWorkingDayReferenceWeek(t *testing.T) {
	loc := mustLoadLoc(t)
	cycle := testCycle(t)

	// Tuesday of the reference week is a working day.
	if !cycle.IsWorkingDay(time.Date(2024, 12, 10, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 2024-12-10 to be a working day")
	}
	// Tuesday of the following week is a rest week.
	if cycle.IsWorkingDay(time.Date(2024, 12, 17, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 2024-12-17 to be a rest day")
	}
}

func TestIsWorkingDayWeekdayFilter(t *testing.T) {
	loc := mustLoadLoc(t)
	cycle := testCycle(t)

	// Monday, Thursday, Saturday and Sunday of a working week are never eligible.
	for _, day := range []int{9, 12, 14, 15} {
		date := time.Date(2024, 12, day, 0, 0, 0, 0, loc)
		if cycle.IsWorkingDay(date) {
			t.Fatalf("expected 2024-12-%02d (%s) to be ineligible", day, date.Weekday())
		}
	}
}

func TestIsWorkingDayBiweeklyPeriodicity(t *testing.T) {
	loc := mustLoadLoc(t)
	cycle := testCycle(t)

	date := time.Date(2024, 12, 10, 0, 0, 0, 0, loc)
	for i := 0; i < 26; i++ {
		next := date.AddDate(0, 0, 14)
		if cycle.IsWorkingDay(date) != cycle.IsWorkingDay(next) {
			t.Fatalf("periodicity broken between %s and %s", date.Format("2006-01-02"), next.Format("2006-01-02"))
		}
		date = next
	}
}

func TestIsWorkingDayBeforeReference(t *testing.T) {
	loc := mustLoadLoc(t)
	cycle := testCycle(t)

	// Two weeks before the reference Monday: negative offset, working week.
	if !cycle.IsWorkingDay(time.Date(2024, 11, 26, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 2024-11-26 to be a working day")
	}
	// One week before: rest week. Truncating division toward zero would
	// misclassify this one.
	if cycle.IsWorkingDay(time.Date(2024, 12, 3, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 2024-12-03 to be a rest day")
	}
}

func TestIsWorkingDayAcrossDST(t *testing.T) {
	loc := mustLoadLoc(t)
	cycle := testCycle(t)

	// 2025-07-01 is a Tuesday, 29 full weeks after the reference Monday and
	// on the other side of a DST switch.
	if cycle.IsWorkingDay(time.Date(2025, 7, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 2025-07-01 to be a rest day")
	}
	if !cycle.IsWorkingDay(time.Date(2025, 7, 8, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 2025-07-08 to be a working day")
	}
}

func TestStartFor(t *testing.T) {
	cycle := testCycle(t)
	if got := cycle.StartFor(time.Friday); got != "13:30" {
		t.Fatalf("expected friday start 13:30, got %s", got)
	}
	if got := cycle.StartFor(time.Tuesday); got != "14:00" {
		t.Fatalf("expected tuesday start 14:00, got %s", got)
	}
}

func TestSlotsFriday(t *testing.T) {
	cycle := testCycle(t)
	slots := cycle.Slots(time.Friday)

	want := []string{"13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i, s := range want {
		if slots[i] != s {
			t.Fatalf("slot %d: expected %s, got %s", i, s, slots[i])
		}
	}
}

func TestSlotsFitBeforeDayEnd(t *testing.T) {
	cycle := testCycle(t)
	endMin := cycle.DayEndMinutes()

	for day := time.Sunday; day <= time.Saturday; day++ {
		for _, s := range cycle.Slots(day) {
			start, err := ParseClockToMinutes(s)
			if err != nil {
				t.Fatalf("parse slot %s: %v", s, err)
			}
			if start+AppointmentMinutes > endMin {
				t.Fatalf("slot %s on %s overruns day end", s, day)
			}
		}
	}
}

func TestOverlapsBackToBack(t *testing.T) {
	a := Interval{Start: 720, End: 780}
	b := Interval{Start: 780, End: 840}
	if Overlaps(a, b) || Overlaps(b, a) {
		t.Fatalf("back-to-back intervals must not overlap")
	}
}

func TestIsOccupiedDerivedVector(t *testing.T) {
	// Bookings at 12:00 and 14:30 against candidate slots 12:00..15:30.
	occupied := []Interval{
		{Start: 720, End: 780},
		{Start: 870, End: 930},
	}

	cases := []struct {
		slot string
		want bool
	}{
		{"12:00", true},
		{"12:30", true},
		{"13:00", false},
		{"13:30", false},
		{"14:00", true},
		{"14:30", true},
		{"15:00", true},
		{"15:30", false},
	}
	for _, tc := range cases {
		start, err := ParseClockToMinutes(tc.slot)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.slot, err)
		}
		if got := IsOccupied(start, occupied); got != tc.want {
			t.Fatalf("slot %s: expected occupied=%v, got %v", tc.slot, tc.want, got)
		}
	}
}

func TestIsOccupiedAllDayBlock(t *testing.T) {
	cycle := testCycle(t)
	allDay := []Interval{{Start: 0, End: cycle.DayEndMinutes()}}
	for _, s := range cycle.Slots(time.Tuesday) {
		start, _ := ParseClockToMinutes(s)
		if !IsOccupied(start, allDay) {
			t.Fatalf("slot %s should be blocked by an all-day interval", s)
		}
	}
}

func TestWithinLeadTime(t *testing.T) {
	now := 14*60 + 50
	if !WithinLeadTime(15*60, now) {
		t.Fatalf("15:00 is only 10 minutes out, must be rejected")
	}
	// A slot exactly 15 minutes away is still too close.
	if !WithinLeadTime(now+LeadTimeMinutes, now) {
		t.Fatalf("slot exactly at the lead-time boundary must be rejected")
	}
	if WithinLeadTime(15*60+30, now) {
		t.Fatalf("15:30 is 40 minutes out, must be accepted")
	}
}

func TestParseClockRoundTrip(t *testing.T) {
	min, err := ParseClockToMinutes("13:30")
	if err != nil {
		t.Fatalf("ParseClockToMinutes error: %v", err)
	}
	if min != 810 {
		t.Fatalf("expected 810, got %d", min)
	}
	if MinutesToClock(min) != "13:30" {
		t.Fatalf("round trip failed: %s", MinutesToClock(min))
	}
}

func TestIsDatePast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2024, 12, 10, 10, 0, 0, 0, loc)

	past, err := IsDatePast("2024-12-09", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if !past {
		t.Fatalf("expected date to be past")
	}

	past, err = IsDatePast("2024-12-10", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if past {
		t.Fatalf("expected today to be not past")
	}
}

func TestIsToday(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2024, 12, 10, 23, 30, 0, 0, loc)

	if !IsToday("2024-12-10", loc, now) {
		t.Fatalf("expected 2024-12-10 to be today")
	}
	// 23:30 Paris is already the next day in UTC; the civil date must not shift.
	if IsToday("2024-12-11", loc, now.UTC()) {
		t.Fatalf("UTC instant must not shift today to the next date")
	}
}
