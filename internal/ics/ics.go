// Package ics renders agenda events as an iCalendar feed.
package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/huddle/internal/agenda"
	"github.com/dukerupert/huddle/internal/model"
)

const productID = "-//huddle//agenda//EN"

// Encode writes events as a VCALENDAR and returns the IDs of events it left
// out. Events whose times cannot be parsed become all-day entries; events
// with an unparseable date are skipped since a VEVENT needs a DTSTART. An end
// time at or before the start time ends on the following day.
func Encode(w io.Writer, name string, events []model.Event, loc *time.Location, now time.Time) ([]string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	var skipped []string
	for _, e := range events {
		start, end, dateOK, timesOK := agenda.Span(e, loc)
		if !dateOK {
			skipped = append(skipped, e.ID)
			continue
		}
		if timesOK && !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}

		ve := cal.AddEvent(e.ID + "@huddle")
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if timesOK {
			ve.SetStartAt(start.UTC())
			ve.SetEndAt(end.UTC())
		} else {
			ve.SetAllDayStartAt(start)
			ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
		}
		ve.SetProperty(ical.ComponentPropertyCategories, string(model.ParseMood(string(e.Mood))))
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt.UTC())
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return skipped, err
}
