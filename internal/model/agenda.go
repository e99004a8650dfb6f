package model

import "time"

// AgendaItem is the display form of a single event inside an AgendaGroup.
// Malformed is set when the event's date or times could not be parsed; the
// item is still shown with placeholder values.
type AgendaItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Mood        Mood   `json:"mood"`
	Description string `json:"description"`
	Malformed   bool   `json:"malformed,omitempty"`
}

// AgendaGroup collects every visible event sharing one date.
type AgendaGroup struct {
	Date  string       `json:"date"`
	Items []AgendaItem `json:"items"`
}

// MarkerMap maps a date to one mood per event on that date.
type MarkerMap map[string][]Mood

// Snapshot is one complete computation of a user's agenda for a month.
type Snapshot struct {
	Month      string        `json:"month"`
	Groups     []AgendaGroup `json:"groups"`
	Markers    MarkerMap     `json:"markers"`
	ComputedAt time.Time     `json:"computed_at"`
	Run        uint64        `json:"run"`
}
