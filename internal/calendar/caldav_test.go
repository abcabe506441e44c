package calendar

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet-backend/internal/schedule"
)

func testProvider(t *testing.T) *Provider {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	p := NewProvider("https://caldav.example.com", "cabinet", "secret", "/calendars/cabinet/perso/", 18*60, loc, nil)
	require.NotNil(t, p)
	return p
}

func eventObject(props func(*ical.Event)) *caldav.CalendarObject {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "evt-1")
	props(event)
	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)
	return &caldav.CalendarObject{Data: cal}
}

func TestNewProviderDisabled(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	assert.Nil(t, NewProvider("", "", "", "", 18*60, loc, nil))
}

func TestEventIntervalTimed(t *testing.T) {
	p := testProvider(t)
	day := time.Date(2024, 12, 10, 0, 0, 0, 0, p.loc)

	obj := eventObject(func(e *ical.Event) {
		e.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 12, 10, 15, 0, 0, 0, p.loc))
		e.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2024, 12, 10, 16, 30, 0, 0, p.loc))
	})

	iv, ok := p.eventInterval(obj, day)
	require.True(t, ok)
	assert.Equal(t, schedule.Interval{Start: 900, End: 990}, iv)
}

func TestEventIntervalUTCInstant(t *testing.T) {
	p := testProvider(t)
	day := time.Date(2024, 12, 10, 0, 0, 0, 0, p.loc)

	// 14:00 UTC is 15:00 Paris in winter; the interval must follow the
	// practice timezone.
	obj := eventObject(func(e *ical.Event) {
		e.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 12, 10, 14, 0, 0, 0, time.UTC))
		e.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2024, 12, 10, 15, 0, 0, 0, time.UTC))
	})

	iv, ok := p.eventInterval(obj, day)
	require.True(t, ok)
	assert.Equal(t, schedule.Interval{Start: 900, End: 960}, iv)
}

func TestEventIntervalAllDay(t *testing.T) {
	p := testProvider(t)
	day := time.Date(2024, 12, 10, 0, 0, 0, 0, p.loc)

	obj := eventObject(func(e *ical.Event) {
		e.Props.SetDateTime(ical.PropDateTimeStart, day)
		e.Props.SetDateTime(ical.PropDateTimeEnd, day.AddDate(0, 0, 1))
	})

	iv, ok := p.eventInterval(obj, day)
	require.True(t, ok)
	assert.Equal(t, schedule.Interval{Start: 0, End: 18 * 60}, iv, "all-day blocks span the whole eligible window")
}

func TestEventIntervalClampsOverflow(t *testing.T) {
	p := testProvider(t)
	day := time.Date(2024, 12, 10, 0, 0, 0, 0, p.loc)

	obj := eventObject(func(e *ical.Event) {
		e.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 12, 9, 22, 0, 0, 0, p.loc))
		e.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2024, 12, 10, 1, 30, 0, 0, p.loc))
	})

	iv, ok := p.eventInterval(obj, day)
	require.True(t, ok)
	assert.Equal(t, schedule.Interval{Start: 0, End: 90}, iv)
}

func TestIsCabinetEvent(t *testing.T) {
	plain := eventObject(func(e *ical.Event) {})
	assert.False(t, isCabinetEvent(plain))

	marked := eventObject(func(e *ical.Event) {
		marker := ical.NewProp(PropXCabinet)
		marker.Value = "1"
		e.Props[PropXCabinet] = []ical.Prop{*marker}
	})
	assert.True(t, isCabinetEvent(marked))

	assert.False(t, isCabinetEvent(nil))
	assert.False(t, isCabinetEvent(&caldav.CalendarObject{}))
}
