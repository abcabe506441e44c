package schedule

import "time"

const (
	SlotStepMinutes    = 30
	AppointmentMinutes = 60
	LeadTimeMinutes    = 15
)

// WorkCycle describes the recurring work pattern: the practitioner works every
// other week, three afternoons per working week.
type WorkCycle struct {
	// ReferenceMonday is the Monday of a known working week.
	ReferenceMonday time.Time
	CycleWeeks      int
	EligibleDays    map[time.Weekday]bool
	DefaultStart    string
	StartOverrides  map[time.Weekday]string
	DayEnd          string
}

// DefaultCycle returns the current cabinet schedule: Tuesday, Wednesday and
// Friday afternoons on alternating weeks, 14:00-18:00 with an earlier Friday
// start.
func DefaultCycle(referenceMonday time.Time) WorkCycle {
	return WorkCycle{
		ReferenceMonday: referenceMonday,
		CycleWeeks:      2,
		EligibleDays: map[time.Weekday]bool{
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Friday:    true,
		},
		DefaultStart: "14:00",
		StartOverrides: map[time.Weekday]string{
			time.Friday: "13:30",
		},
		DayEnd: "18:00",
	}
}

// mondayOf returns midnight of the Monday of date's week. Sunday counts as the
// last day of the week, six days after Monday.
func mondayOf(date time.Time) time.Time {
	offset := int(date.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset = 6
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return day.AddDate(0, 0, -offset)
}

// floorDiv truncates toward negative infinity, so dates before the reference
// Monday land on negative week offsets instead of rounding toward zero.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// civilUTC re-anchors a civil date at UTC midnight so day arithmetic is not
// skewed by DST transitions in the practice timezone.
func civilUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWorkingDay reports whether date falls on an eligible weekday of a working
// week of the biweekly cycle.
func (c WorkCycle) IsWorkingDay(date time.Time) bool {
	if !c.EligibleDays[date.Weekday()] {
		return false
	}

	reference := civilUTC(mondayOf(c.ReferenceMonday))
	monday := civilUTC(mondayOf(date))
	days := int(monday.Sub(reference).Hours() / 24)
	weeks := floorDiv(days, 7)
	return mod(weeks, c.CycleWeeks) == 0
}

// StartFor returns the first bookable time of the given weekday.
func (c WorkCycle) StartFor(day time.Weekday) string {
	if start, ok := c.StartOverrides[day]; ok {
		return start
	}
	return c.DefaultStart
}

// Slots generates the candidate start times for the given weekday, stepping by
// SlotStepMinutes. The stop condition checks the full appointment length, not
// the step, so the last appointment always ends by DayEnd.
func (c WorkCycle) Slots(day time.Weekday) []string {
	startMin, err := ParseClockToMinutes(c.StartFor(day))
	if err != nil {
		return nil
	}
	endMin, err := ParseClockToMinutes(c.DayEnd)
	if err != nil {
		return nil
	}

	slots := make([]string, 0)
	for cursor := startMin; cursor+AppointmentMinutes <= endMin; cursor += SlotStepMinutes {
		slots = append(slots, MinutesToClock(cursor))
	}
	return slots
}

// HasSlot reports whether timeStr is one of the candidate start times for
// date's weekday.
func (c WorkCycle) HasSlot(day time.Weekday, timeStr string) bool {
	for _, s := range c.Slots(day) {
		if s == timeStr {
			return true
		}
	}
	return false
}

// DayEndMinutes is the closing time in minutes since midnight. All-day
// external blocks are normalized to [0, DayEndMinutes) by callers.
func (c WorkCycle) DayEndMinutes() int {
	endMin, err := ParseClockToMinutes(c.DayEnd)
	if err != nil {
		return 0
	}
	return endMin
}
