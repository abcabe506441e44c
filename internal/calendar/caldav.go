// Package calendar reads the practitioner's personal CalDAV calendar as a
// source of blocked intervals and mirrors confirmed bookings into it.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/sony/gobreaker/v2"

	"cabinet-backend/internal/models"
	"cabinet-backend/internal/schedule"
)

// PropXCabinet marks events created by this backend so reads and deletes can
// tell them apart from the practitioner's own entries.
const PropXCabinet = "X-CABINET"

type Provider struct {
	baseURL       string
	username      string
	password      string
	calendarPath  string
	loc           *time.Location
	dayEndMinutes int
	log           *slog.Logger
	breaker       *gobreaker.CircuitBreaker[[]schedule.Interval]
	httpClient    *http.Client
}

// NewProvider returns nil when the CalDAV integration is not configured, like
// the mailer: a nil provider simply means no external blocks.
func NewProvider(baseURL, username, password, calendarPath string, dayEndMinutes int, loc *time.Location, log *slog.Logger) *Provider {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(username) == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[[]schedule.Interval](gobreaker.Settings{
		Name:    "caldav",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Provider{
		baseURL:       baseURL,
		username:      username,
		password:      password,
		calendarPath:  calendarPath,
		loc:           loc,
		dayEndMinutes: dayEndMinutes,
		log:           log,
		breaker:       breaker,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Provider) client() (*caldav.Client, error) {
	client, err := caldav.NewClient(
		webdav.HTTPClientWithBasicAuth(p.httpClient, p.username, p.password),
		p.baseURL,
	)
	if err != nil {
		return nil, fmt.Errorf("caldav client: %w", err)
	}
	return client, nil
}

func (p *Provider) findCalendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if p.calendarPath != "" {
		return p.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("caldav principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("caldav home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("caldav calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("caldav: no calendars found")
	}
	return cals[0].Path, nil
}

// BlockedIntervals returns the occupied intervals of one civil date. The
// circuit breaker makes a flapping calendar fail fast instead of paying the
// full bounded wait on every request.
func (p *Provider) BlockedIntervals(ctx context.Context, dateStr string) ([]schedule.Interval, error) {
	return p.breaker.Execute(func() ([]schedule.Interval, error) {
		return p.fetchBlocked(ctx, dateStr)
	})
}

func (p *Provider) fetchBlocked(ctx context.Context, dateStr string) ([]schedule.Interval, error) {
	date, err := schedule.ParseDate(dateStr, p.loc)
	if err != nil {
		return nil, err
	}
	dayStart := date
	dayEnd := date.AddDate(0, 0, 1)

	client, err := p.client()
	if err != nil {
		return nil, err
	}
	calPath, err := p.findCalendarPath(ctx, client)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{
					Name:  "VEVENT",
					Props: []string{"UID", "DTSTART", "DTEND", "SUMMARY", PropXCabinet},
				},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: dayStart,
					End:   dayEnd,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, fmt.Errorf("caldav query: %w", err)
	}

	intervals := make([]schedule.Interval, 0, len(objects))
	for i := range objects {
		if isCabinetEvent(&objects[i]) {
			// Our own mirrored bookings already occupy the slot via the store.
			continue
		}
		iv, ok := p.eventInterval(&objects[i], dayStart)
		if ok {
			intervals = append(intervals, iv)
		}
	}
	return intervals, nil
}

// eventInterval maps a calendar object to minutes within the given day.
// All-day events block the whole eligible window [0, dayEnd).
func (p *Provider) eventInterval(obj *caldav.CalendarObject, dayStart time.Time) (schedule.Interval, bool) {
	if obj == nil || obj.Data == nil {
		return schedule.Interval{}, false
	}

	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		event := ical.Event{Component: child}
		start, err := event.DateTimeStart(p.loc)
		if err != nil {
			return schedule.Interval{}, false
		}
		end, err := event.DateTimeEnd(p.loc)
		if err != nil {
			return schedule.Interval{}, false
		}

		allDay := start.Hour() == 0 && start.Minute() == 0 &&
			end.Hour() == 0 && end.Minute() == 0
		if allDay {
			return schedule.Interval{Start: 0, End: p.dayEndMinutes}, true
		}

		startMin := int(start.In(p.loc).Sub(dayStart).Minutes())
		endMin := int(end.In(p.loc).Sub(dayStart).Minutes())
		// Clamp events spilling over midnight into this day's window.
		if startMin < 0 {
			startMin = 0
		}
		if endMin > 24*60 {
			endMin = 24 * 60
		}
		if endMin <= startMin {
			return schedule.Interval{}, false
		}
		return schedule.Interval{Start: startMin, End: endMin}, true
	}
	return schedule.Interval{}, false
}

func isCabinetEvent(obj *caldav.CalendarObject) bool {
	if obj == nil || obj.Data == nil {
		return false
	}
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if props := child.Props[PropXCabinet]; len(props) > 0 {
			return true
		}
	}
	return false
}

// CreateEvent mirrors a booked appointment into the calendar and returns the
// event id. Callers treat failures as best-effort.
func (p *Provider) CreateEvent(ctx context.Context, appt models.Appointment) (string, error) {
	start, err := schedule.ParseDateTime(appt.Date, appt.Time, p.loc)
	if err != nil {
		return "", err
	}
	end := start.Add(schedule.AppointmentMinutes * time.Minute)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Cabinet//Booking//FR")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, appt.ID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	event.Props.SetText(ical.PropSummary, fmt.Sprintf("Consultation - %s", appt.Name))
	event.Props.SetText(ical.PropDescription, fmt.Sprintf("Type: %s\nEmail: %s\nTel: %s", appt.Type, appt.Email, appt.Phone))

	marker := ical.NewProp(PropXCabinet)
	marker.Value = "1"
	event.Props[PropXCabinet] = []ical.Prop{*marker}

	cal.Children = append(cal.Children, event.Component)

	client, err := p.client()
	if err != nil {
		return "", err
	}
	calPath, err := p.findCalendarPath(ctx, client)
	if err != nil {
		return "", err
	}

	eventPath := fmt.Sprintf("%s%s.ics", calPath, appt.ID)
	if _, err := client.PutCalendarObject(ctx, eventPath, cal); err != nil {
		return "", fmt.Errorf("caldav put: %w", err)
	}
	return appt.ID, nil
}

// DeleteEvent removes a mirrored event, typically after a cancellation.
func (p *Provider) DeleteEvent(ctx context.Context, eventID string) error {
	client, err := p.client()
	if err != nil {
		return err
	}
	calPath, err := p.findCalendarPath(ctx, client)
	if err != nil {
		return err
	}
	return client.RemoveAll(ctx, fmt.Sprintf("%s%s.ics", calPath, eventID))
}
