package availability

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet-backend/internal/schedule"
)

type fakeBookings struct {
	intervals map[string][]schedule.Interval
	err       error
	calls     int
}

func (f *fakeBookings) OccupiedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.intervals[date], nil
}

type fakeCalendar struct {
	intervals map[string][]schedule.Interval
	err       error
	calls     int
}

func (f *fakeCalendar) BlockedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.intervals[date], nil
}

func parisLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func newResolver(t *testing.T, bookings *fakeBookings, calendar *fakeCalendar, now time.Time) *Resolver {
	loc := parisLoc(t)
	return &Resolver{
		Cycle:    schedule.DefaultCycle(time.Date(2024, 12, 9, 0, 0, 0, 0, loc)),
		Loc:      loc,
		Bookings: bookings,
		Calendar: calendar,
		Log:      slog.New(slog.NewTextHandler(testWriter{t}, nil)),
		Now:      func() time.Time { return now },
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestResolveDayIneligibleShortCircuits(t *testing.T) {
	loc := parisLoc(t)
	bookings := &fakeBookings{}
	calendar := &fakeCalendar{}
	r := newResolver(t, bookings, calendar, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	// 2024-12-17 is a Tuesday of a rest week.
	view, err := r.ResolveDay(context.Background(), "2024-12-17")
	require.NoError(t, err)

	assert.False(t, view.Eligible)
	assert.False(t, view.Available)
	assert.Empty(t, view.All)
	assert.Zero(t, bookings.calls, "ineligible days must not hit the booking store")
	assert.Zero(t, calendar.calls, "ineligible days must not hit the calendar")
}

func TestResolveDayAllFree(t *testing.T) {
	loc := parisLoc(t)
	r := newResolver(t, &fakeBookings{}, &fakeCalendar{}, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	view, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.NoError(t, err)

	assert.True(t, view.Eligible)
	assert.True(t, view.Available)
	require.Len(t, view.All, 7)
	assert.Equal(t, "14:00", view.All[0].Time)
	assert.Equal(t, "17:00", view.All[6].Time)
	for _, sv := range view.All {
		assert.True(t, sv.Available, "slot %s", sv.Time)
	}
	// The morning bucket is empty because no start time precedes noon, not
	// because it is hardcoded.
	assert.Empty(t, view.Morning)
	assert.Len(t, view.Afternoon, 7)
}

func TestResolveDayMergesBookingAndCalendarBlocks(t *testing.T) {
	loc := parisLoc(t)
	bookings := &fakeBookings{intervals: map[string][]schedule.Interval{
		"2024-12-10": {{Start: 840, End: 900}}, // booking at 14:00
	}}
	calendar := &fakeCalendar{intervals: map[string][]schedule.Interval{
		"2024-12-10": {{Start: 960, End: 1020}}, // external block 16:00-17:00
	}}
	r := newResolver(t, bookings, calendar, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	view, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.NoError(t, err)

	byTime := map[string]bool{}
	for _, sv := range view.All {
		byTime[sv.Time] = sv.Available
	}
	assert.False(t, byTime["14:00"])
	assert.False(t, byTime["14:30"])
	assert.True(t, byTime["15:00"])
	assert.False(t, byTime["15:30"], "15:30 appointment runs into the 16:00 block")
	assert.False(t, byTime["16:00"])
	assert.False(t, byTime["16:30"])
	assert.True(t, byTime["17:00"], "back-to-back with the block end, no overlap")
}

func TestResolveDayCalendarFailureDegrades(t *testing.T) {
	loc := parisLoc(t)
	calendar := &fakeCalendar{err: errors.New("caldav: 503")}
	r := newResolver(t, &fakeBookings{}, calendar, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	view, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.NoError(t, err, "calendar unavailability must not fail the request")
	assert.True(t, view.Available)
	assert.Equal(t, 1, calendar.calls)
}

// hangingCalendar never answers until the caller gives up.
type hangingCalendar struct{}

func (hangingCalendar) BlockedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveDayCalendarHangIsBounded(t *testing.T) {
	loc := parisLoc(t)
	r := &Resolver{
		Cycle:           schedule.DefaultCycle(time.Date(2024, 12, 9, 0, 0, 0, 0, loc)),
		Loc:             loc,
		Bookings:        &fakeBookings{},
		Calendar:        hangingCalendar{},
		Log:             slog.New(slog.NewTextHandler(testWriter{t}, nil)),
		Now:             func() time.Time { return time.Date(2024, 12, 9, 10, 0, 0, 0, loc) },
		CalendarTimeout: 20 * time.Millisecond,
	}

	start := time.Now()
	view, err := r.ResolveDay(context.Background(), "2024-12-10")
	elapsed := time.Since(start)

	require.NoError(t, err, "a hung calendar must degrade, not fail the request")
	assert.True(t, view.Available, "degraded view must compute as if no external blocks exist")
	assert.Less(t, elapsed, 2*time.Second, "the calendar wait must be bounded by CalendarTimeout")
}

func TestResolveDayStoreFailureIsFatal(t *testing.T) {
	loc := parisLoc(t)
	storeErr := errors.New("mongo: connection refused")
	r := newResolver(t, &fakeBookings{err: storeErr}, &fakeCalendar{}, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	_, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.ErrorIs(t, err, storeErr, "a store failure must never pass for an empty day")
}

func TestResolveDayLeadTimeToday(t *testing.T) {
	loc := parisLoc(t)
	// Today is Tuesday 2024-12-10 at 14:50.
	r := newResolver(t, &fakeBookings{}, &fakeCalendar{}, time.Date(2024, 12, 10, 14, 50, 0, 0, loc))

	view, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.NoError(t, err)

	byTime := map[string]bool{}
	for _, sv := range view.All {
		byTime[sv.Time] = sv.Available
	}
	assert.False(t, byTime["14:00"], "already started")
	assert.False(t, byTime["15:00"], "only 10 minutes out")
	assert.True(t, byTime["15:30"], "40 minutes out")
}

func TestResolveDayIdempotent(t *testing.T) {
	loc := parisLoc(t)
	bookings := &fakeBookings{intervals: map[string][]schedule.Interval{
		"2024-12-10": {{Start: 870, End: 930}},
	}}
	r := newResolver(t, bookings, &fakeCalendar{}, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	first, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.NoError(t, err)
	second, err := r.ResolveDay(context.Background(), "2024-12-10")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveDayInvalidDate(t *testing.T) {
	loc := parisLoc(t)
	r := newResolver(t, &fakeBookings{}, &fakeCalendar{}, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	_, err := r.ResolveDay(context.Background(), "10/12/2024")
	require.ErrorIs(t, err, schedule.ErrInvalidDate)
}

func TestResolveMonth(t *testing.T) {
	loc := parisLoc(t)
	// Fully booked Tuesday 2024-12-10; everything else free.
	full := make([]schedule.Interval, 0)
	full = append(full, schedule.Interval{Start: 0, End: 18 * 60})
	bookings := &fakeBookings{intervals: map[string][]schedule.Interval{
		"2024-12-10": full,
	}}
	r := newResolver(t, bookings, &fakeCalendar{}, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	result, err := r.ResolveMonth(context.Background(), 12, 2024)
	require.NoError(t, err)

	assert.Equal(t, 12, result.Month)
	assert.Equal(t, 2024, result.Year)
	// Working weeks of December 2024 are Dec 9 and Dec 23; the fully booked
	// 10th drops out.
	assert.Equal(t, []int{11, 13, 24, 25, 27}, result.AvailableDates)
}

func TestResolveMonthExcludesPastDays(t *testing.T) {
	loc := parisLoc(t)
	// Today is Wednesday 2024-12-11: the working Tuesday of that week is gone.
	r := newResolver(t, &fakeBookings{}, &fakeCalendar{}, time.Date(2024, 12, 11, 9, 0, 0, 0, loc))

	result, err := r.ResolveMonth(context.Background(), 12, 2024)
	require.NoError(t, err)
	assert.NotContains(t, result.AvailableDates, 10)
	assert.Contains(t, result.AvailableDates, 11)
}

func TestNextAvailable(t *testing.T) {
	loc := parisLoc(t)
	bookings := &fakeBookings{intervals: map[string][]schedule.Interval{
		"2024-12-10": {{Start: 0, End: 18 * 60}},
	}}
	r := newResolver(t, bookings, &fakeCalendar{}, time.Date(2024, 12, 9, 10, 0, 0, 0, loc))

	date, slot, found, err := r.NextAvailable(context.Background(), "2024-12-09")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2024-12-11", date)
	assert.Equal(t, "14:00", slot)
}
