// Package availability computes the bookable slots for a given date by
// reconciling the recurring work cycle, confirmed bookings and external
// calendar blocks.
package availability

import (
	"context"
	"log/slog"
	"time"

	"cabinet-backend/internal/schedule"
)

// HorizonDays bounds how far ahead availability is offered.
const HorizonDays = 180

const morningBoundaryMinutes = 12 * 60

// BookingSource yields occupied intervals from the booking store. A failure
// here is fatal to the request: treating it as "no bookings" would offer slots
// that are already taken.
type BookingSource interface {
	OccupiedIntervals(ctx context.Context, date string) ([]schedule.Interval, error)
}

// BlockProvider yields blocked intervals from the practitioner's external
// calendar. It may fail independently of the booking store.
type BlockProvider interface {
	BlockedIntervals(ctx context.Context, date string) ([]schedule.Interval, error)
}

type SlotView struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type DayAvailability struct {
	Date      string     `json:"date"`
	Eligible  bool       `json:"eligible"`
	Morning   []SlotView `json:"morning"`
	Afternoon []SlotView `json:"afternoon"`
	All       []SlotView `json:"all"`
	Available bool       `json:"available"`
}

type MonthAvailability struct {
	Month          int   `json:"month"`
	Year           int   `json:"year"`
	AvailableDates []int `json:"availableDates"`
}

type Resolver struct {
	Cycle    schedule.WorkCycle
	Loc      *time.Location
	Bookings BookingSource
	Calendar BlockProvider
	Log      *slog.Logger

	// Now is the single source of "today" decisions, injected so tests can
	// pin the clock.
	Now func() time.Time

	// CalendarTimeout bounds the external calendar fetch; zero means 3s.
	CalendarTimeout time.Duration
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) calendarTimeout() time.Duration {
	if r.CalendarTimeout > 0 {
		return r.CalendarTimeout
	}
	return 3 * time.Second
}

// ResolveDay computes the availability view for one date. Ineligible dates
// short-circuit before any collaborator call.
func (r *Resolver) ResolveDay(ctx context.Context, dateStr string) (DayAvailability, error) {
	date, err := schedule.ParseDate(dateStr, r.Loc)
	if err != nil {
		return DayAvailability{}, err
	}

	view := DayAvailability{
		Date:      dateStr,
		Morning:   []SlotView{},
		Afternoon: []SlotView{},
		All:       []SlotView{},
	}
	if !r.Cycle.IsWorkingDay(date) {
		return view, nil
	}
	view.Eligible = true

	occupied, err := r.Bookings.OccupiedIntervals(ctx, dateStr)
	if err != nil {
		return DayAvailability{}, err
	}

	occupied = append(occupied, r.externalBlocks(ctx, dateStr)...)

	now := r.now().In(r.Loc)
	today := schedule.IsToday(dateStr, r.Loc, now)
	nowMin := now.Hour()*60 + now.Minute()

	for _, s := range r.Cycle.Slots(date.Weekday()) {
		startMin, err := schedule.ParseClockToMinutes(s)
		if err != nil {
			return DayAvailability{}, err
		}

		free := !schedule.IsOccupied(startMin, occupied)
		if free && today && schedule.WithinLeadTime(startMin, nowMin) {
			free = false
		}

		sv := SlotView{Time: s, Available: free}
		view.All = append(view.All, sv)
		if startMin < morningBoundaryMinutes {
			view.Morning = append(view.Morning, sv)
		} else {
			view.Afternoon = append(view.Afternoon, sv)
		}
		if free {
			view.Available = true
		}
	}

	return view, nil
}

// externalBlocks fetches calendar blocks with a bounded wait. Calendar
// unavailability degrades to "no external blocks" and must never fail the
// request.
func (r *Resolver) externalBlocks(ctx context.Context, dateStr string) []schedule.Interval {
	if r.Calendar == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.calendarTimeout())
	defer cancel()

	blocks, err := r.Calendar.BlockedIntervals(fetchCtx, dateStr)
	if err != nil {
		if r.Log != nil {
			r.Log.Warn("availability: calendar fetch failed",
				slog.String("date", dateStr),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return blocks
}

// ResolveMonth walks every date from today through today+HorizonDays and
// collects the day numbers of the requested month that still have at least
// one free slot. The lower bound of the walk is what keeps past dates out.
func (r *Resolver) ResolveMonth(ctx context.Context, month, year int) (MonthAvailability, error) {
	result := MonthAvailability{Month: month, Year: year, AvailableDates: []int{}}

	now := r.now().In(r.Loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.Loc)

	for i := 0; i <= HorizonDays; i++ {
		date := start.AddDate(0, 0, i)
		if int(date.Month()) != month || date.Year() != year {
			continue
		}

		view, err := r.ResolveDay(ctx, date.Format("2006-01-02"))
		if err != nil {
			return MonthAvailability{}, err
		}
		if view.Available {
			result.AvailableDates = append(result.AvailableDates, date.Day())
		}
	}

	return result, nil
}

// NextAvailable scans forward from fromDate for the first free slot within
// the booking horizon.
func (r *Resolver) NextAvailable(ctx context.Context, fromDate string) (string, string, bool, error) {
	start, err := schedule.ParseDate(fromDate, r.Loc)
	if err != nil {
		return "", "", false, err
	}

	for i := 0; i <= HorizonDays; i++ {
		dateStr := start.AddDate(0, 0, i).Format("2006-01-02")
		view, err := r.ResolveDay(ctx, dateStr)
		if err != nil {
			return "", "", false, err
		}
		for _, sv := range view.All {
			if sv.Available {
				return dateStr, sv.Time, true, nil
			}
		}
	}
	return "", "", false, nil
}
