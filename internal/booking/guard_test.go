package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet-backend/internal/models"
	"cabinet-backend/internal/schedule"
)

type fakeStore struct {
	existing    map[string]bool // "date time" pairs
	occupied    map[string][]schedule.Interval
	existsErr   error
	occupiedErr error
	insertErr   error
	inserted    []models.Appointment
}

func (f *fakeStore) OccupiedIntervals(ctx context.Context, date string) ([]schedule.Interval, error) {
	if f.occupiedErr != nil {
		return nil, f.occupiedErr
	}
	return f.occupied[date], nil
}

func (f *fakeStore) Exists(ctx context.Context, date, timeStr string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[date+" "+timeStr], nil
}

func (f *fakeStore) Insert(ctx context.Context, appt models.Appointment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, appt)
	return nil
}

func newGuard(t *testing.T, store *fakeStore, now time.Time) *Guard {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return &Guard{
		Cycle: schedule.DefaultCycle(time.Date(2024, 12, 9, 0, 0, 0, 0, loc)),
		Loc:   loc,
		Store: store,
		Now:   func() time.Time { return now },
	}
}

func parisTime(t *testing.T, y int, m time.Month, d, hh, mm int) time.Time {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func TestTryReserveHappyPath(t *testing.T) {
	store := &fakeStore{}
	g := newGuard(t, store, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{
		Date: "2024-12-10", Time: "14:00", Status: models.AppointmentStatusBooked,
	})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "14:00", store.inserted[0].Time)
}

func TestTryReserveRestWeek(t *testing.T) {
	g := newGuard(t, &fakeStore{}, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-17", Time: "14:00"})
	assert.ErrorIs(t, err, ErrIneligibleDate)
}

func TestTryReserveSlotNotOffered(t *testing.T) {
	g := newGuard(t, &fakeStore{}, parisTime(t, 2024, 12, 9, 10, 0))

	// 13:30 only exists on Fridays; 2024-12-10 is a Tuesday.
	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "13:30"})
	assert.ErrorIs(t, err, ErrSlotNotOffered)

	// 17:30 would end past closing on any day.
	err = g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "17:30"})
	assert.ErrorIs(t, err, ErrSlotNotOffered)
}

func TestTryReserveTaken(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{"2024-12-10 14:00": true}}
	g := newGuard(t, store, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "14:00"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Empty(t, store.inserted)
}

func TestTryReserveOverlappingBooking(t *testing.T) {
	// An active 14:00 booking occupies [840, 900). The 14:30 slot overlaps it
	// even though the exact (date, time) pair is free, so the unique index
	// alone would let it through.
	store := &fakeStore{occupied: map[string][]schedule.Interval{
		"2024-12-10": {{Start: 840, End: 900}},
	}}
	g := newGuard(t, store, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "14:30"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Empty(t, store.inserted)

	// The next non-overlapping slot goes through.
	err = g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "15:00"})
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
}

func TestTryReserveBlockedSlot(t *testing.T) {
	// A manual reservation block occupies the slot; no appointment exists, so
	// only the occupancy re-check can reject the write.
	store := &fakeStore{occupied: map[string][]schedule.Interval{
		"2024-12-10": {{Start: 960, End: 1020}},
	}}
	g := newGuard(t, store, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "16:00"})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Empty(t, store.inserted)
}

func TestTryReserveOccupancyFetchFailure(t *testing.T) {
	storeErr := errors.New("mongo: timeout")
	g := newGuard(t, &fakeStore{occupiedErr: storeErr}, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "14:00"})
	assert.ErrorIs(t, err, storeErr)
}

func TestTryReserveLostInsertRace(t *testing.T) {
	// Exists said free, but a concurrent write hit the unique index first.
	store := &fakeStore{insertErr: ErrSlotTaken}
	g := newGuard(t, store, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "14:00"})
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestTryReserveLeadTimeToday(t *testing.T) {
	// Tuesday 2024-12-10 at 14:50.
	g := newGuard(t, &fakeStore{}, parisTime(t, 2024, 12, 10, 14, 50))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "15:00"})
	assert.ErrorIs(t, err, ErrLeadTime)

	err = g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "15:30"})
	assert.NoError(t, err)
}

func TestTryReserveStoreFailure(t *testing.T) {
	storeErr := errors.New("mongo: timeout")
	g := newGuard(t, &fakeStore{existsErr: storeErr}, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "14:00"})
	assert.ErrorIs(t, err, storeErr)
}

func TestTryReserveInvalidInput(t *testing.T) {
	g := newGuard(t, &fakeStore{}, parisTime(t, 2024, 12, 9, 10, 0))

	err := g.TryReserve(context.Background(), models.Appointment{Date: "not-a-date", Time: "14:00"})
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)

	err = g.TryReserve(context.Background(), models.Appointment{Date: "2024-12-10", Time: "2pm"})
	assert.ErrorIs(t, err, schedule.ErrInvalidTime)
}
