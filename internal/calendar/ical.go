// Package calendar lets users take their RSVP'd events with them: export
// to an iCalendar file, or publish to a CalDAV calendar.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"gathr/internal/models"
)

// defaultDuration is assumed for events, which carry only a start time.
const defaultDuration = 2 * time.Hour

// toVEvent converts an event into a VEVENT with a display alarm matching
// the client's reminder lead.
func toVEvent(ev models.Event, lead time.Duration) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.ID)
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Date)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.Date.Add(defaultDuration))

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	ve.Props.SetText(ical.PropCategories, string(ev.Category))

	if lead > 0 {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, ev.Title)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.SetValueType(ical.ValueDuration)
		trigger.Value = fmt.Sprintf("-PT%dM", int(lead.Minutes()))
		alarm.Props.Add(trigger)
		ve.Children = append(ve.Children, alarm)
	}
	return ve
}

func newCalendar(events []models.Event, lead time.Duration) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//gathr//EN")
	for _, ev := range events {
		cal.Children = append(cal.Children, toVEvent(ev, lead))
	}
	return cal
}

// Export writes the given events as a single iCalendar stream.
func Export(w io.Writer, events []models.Event, lead time.Duration) error {
	if err := ical.NewEncoder(w).Encode(newCalendar(events, lead)); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// Attending narrows events to the ones the given user is attending.
func Attending(events []models.Event, userID string) []models.Event {
	var out []models.Event
	for _, ev := range events {
		if ev.HasAttendee(userID) {
			out = append(out, ev)
		}
	}
	return out
}
