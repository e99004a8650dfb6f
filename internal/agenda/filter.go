package agenda

import (
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// DefaultGraceDays keeps yesterday's events on the agenda.
const DefaultGraceDays = 1

// TemporalFilter drops elapsed events and events outside the selected month.
// An event survives when its date is on or after midnight of "now" minus
// GraceDays calendar days, both measured in Location.
type TemporalFilter struct {
	GraceDays int
	Location  *time.Location
}

// NewTemporalFilter returns the default one-day grace policy in loc.
func NewTemporalFilter(loc *time.Location) TemporalFilter {
	return TemporalFilter{GraceDays: DefaultGraceDays, Location: loc}
}

func (f TemporalFilter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Cutoff returns the earliest date kept for the given instant.
func (f TemporalFilter) Cutoff(now time.Time) time.Time {
	now = now.In(f.location())
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -f.GraceDays)
}

// Apply returns the events kept for month at instant now, preserving input
// order. Events with an unparseable date are kept so they can be shown as
// malformed rather than disappearing.
func (f TemporalFilter) Apply(events []model.Event, month, now time.Time) []model.Event {
	loc := f.location()
	cutoff := f.Cutoff(now)
	month = month.In(loc)

	var kept []model.Event
	for _, e := range events {
		d, err := time.ParseInLocation(model.DateLayout, e.Date, loc)
		if err != nil {
			kept = append(kept, e)
			continue
		}
		if d.Before(cutoff) {
			continue
		}
		if d.Year() != month.Year() || d.Month() != month.Month() {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
