package schedule

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps uses strict half-open semantics: back-to-back intervals do not
// overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// IsOccupied reports whether a 60-minute appointment starting at startMin
// would overlap any of the occupied intervals. Booking-sourced and external
// calendar intervals go through the same predicate.
func IsOccupied(startMin int, occupied []Interval) bool {
	slot := Interval{Start: startMin, End: startMin + AppointmentMinutes}
	for _, iv := range occupied {
		if Overlaps(slot, iv) {
			return true
		}
	}
	return false
}

// WithinLeadTime reports whether a slot at startMin is too close to now on the
// current day. A slot exactly LeadTimeMinutes away is still rejected.
func WithinLeadTime(startMin, nowMin int) bool {
	return startMin <= nowMin+LeadTimeMinutes
}
