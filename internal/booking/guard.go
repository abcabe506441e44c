package booking

import (
	"context"
	"errors"
	"time"

	"cabinet-backend/internal/models"
	"cabinet-backend/internal/schedule"
)

var (
	// ErrIneligibleDate reports a date outside the work cycle.
	ErrIneligibleDate = errors.New("date outside the work schedule")
	// ErrSlotNotOffered reports a time that is not one of the generated
	// candidate starts for that weekday.
	ErrSlotNotOffered = errors.New("time is not an offered slot")
	// ErrLeadTime reports a same-day slot too close to now.
	ErrLeadTime = errors.New("slot within minimum lead time")
)

// Guard re-validates a reservation at write time, closing the window between
// a client's availability read and its booking write. The unique index in the
// store remains the final arbiter for two writes racing past the Exists check.
type Guard struct {
	Cycle schedule.WorkCycle
	Loc   *time.Location
	Store Store
	Now   func() time.Time
}

func (g *Guard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// TryReserve checks eligibility, slot membership, lead time, overlap against
// current occupancy and exact-pair uniqueness in order, then writes the
// appointment. ErrSlotTaken is an expected outcome and must be presented as
// "slot no longer available", not a server error.
func (g *Guard) TryReserve(ctx context.Context, appt models.Appointment) error {
	date, err := schedule.ParseDate(appt.Date, g.Loc)
	if err != nil {
		return err
	}
	startMin, err := schedule.ParseClockToMinutes(appt.Time)
	if err != nil {
		return err
	}

	if !g.Cycle.IsWorkingDay(date) {
		return ErrIneligibleDate
	}
	if !g.Cycle.HasSlot(date.Weekday(), appt.Time) {
		return ErrSlotNotOffered
	}

	now := g.now().In(g.Loc)
	if schedule.IsToday(appt.Date, g.Loc, now) {
		if schedule.WithinLeadTime(startMin, now.Hour()*60+now.Minute()) {
			return ErrLeadTime
		}
	}

	// Overlap re-check against the latest store state. Catches what the exact
	// pair check below cannot: an active booking offset by 30 minutes, or a
	// manual reservation block on this slot.
	occupied, err := g.Store.OccupiedIntervals(ctx, appt.Date)
	if err != nil {
		return err
	}
	if schedule.IsOccupied(startMin, occupied) {
		return ErrSlotTaken
	}

	taken, err := g.Store.Exists(ctx, appt.Date, appt.Time)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}

	return g.Store.Insert(ctx, appt)
}
