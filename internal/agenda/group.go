package agenda

import (
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// InvalidTime replaces a start or end time that could not be parsed.
const InvalidTime = "Invalid time"

const displayTimeLayout = "3:04 PM"

var storedTimeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"3:04:05PM",
	"15:04",
	"15:04:05",
}

// parseClock combines a date key with a stored wall-clock string.
func parseClock(date time.Time, s string) (time.Time, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range storedTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, date.Location()), true
		}
	}
	return time.Time{}, false
}

func displayTime(date time.Time, dateOK bool, s string) (string, bool) {
	if !dateOK {
		return InvalidTime, false
	}
	t, ok := parseClock(date, s)
	if !ok {
		return InvalidTime, false
	}
	return t.Format(displayTimeLayout), true
}

// Group buckets events by date. Items keep their input order within a date;
// groups are ordered by ascending date, with unparseable dates last.
func Group(events []model.Event) []model.AgendaGroup {
	type bucket struct {
		date  time.Time
		valid bool
		group model.AgendaGroup
	}

	index := make(map[string]int)
	var buckets []*bucket

	for _, e := range events {
		i, ok := index[e.Date]
		if !ok {
			d, err := time.Parse(model.DateLayout, e.Date)
			buckets = append(buckets, &bucket{
				date:  d,
				valid: err == nil,
				group: model.AgendaGroup{Date: e.Date},
			})
			i = len(buckets) - 1
			index[e.Date] = i
		}
		b := buckets[i]

		start, startOK := displayTime(b.date, b.valid, e.StartTime)
		end, endOK := displayTime(b.date, b.valid, e.EndTime)
		b.group.Items = append(b.group.Items, model.AgendaItem{
			ID:          e.ID,
			Title:       e.Title,
			StartTime:   start,
			EndTime:     end,
			Mood:        model.ParseMood(string(e.Mood)),
			Description: e.Description,
			Malformed:   !startOK || !endOK,
		})
	}

	slices.SortStableFunc(buckets, func(a, b *bucket) int {
		switch {
		case a.valid && b.valid:
			return a.date.Compare(b.date)
		case a.valid:
			return -1
		case b.valid:
			return 1
		default:
			return strings.Compare(a.group.Date, b.group.Date)
		}
	})

	groups := make([]model.AgendaGroup, len(buckets))
	for i, b := range buckets {
		groups[i] = b.group
	}
	return groups
}

// Span resolves an event's date and wall-clock times in loc. dateOK is false
// when the date key does not parse; timesOK is false when either time does
// not.
func Span(e model.Event, loc *time.Location) (start, end time.Time, dateOK, timesOK bool) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(model.DateLayout, e.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, false
	}
	start, startOK := parseClock(d, e.StartTime)
	end, endOK := parseClock(d, e.EndTime)
	if !startOK || !endOK {
		return d, d, true, false
	}
	return start, end, true, true
}
