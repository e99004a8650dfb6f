package model

import (
	"strings"
	"time"
)

// DateLayout is the normalized form of Event.Date.
const DateLayout = "2006-01-02"

// Mood is a color tag a user attaches to an event.
type Mood string

const (
	MoodBlue   Mood = "blue"
	MoodPurple Mood = "purple"
	MoodPink   Mood = "pink"
	MoodGreen  Mood = "green"
	MoodYellow Mood = "yellow"
)

var validMoods = map[Mood]bool{
	MoodBlue:   true,
	MoodPurple: true,
	MoodPink:   true,
	MoodGreen:  true,
	MoodYellow: true,
}

// ParseMood normalizes s into a known Mood. Anything unrecognized, including
// the empty string, becomes MoodBlue.
func ParseMood(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if validMoods[m] {
		return m
	}
	return MoodBlue
}

type Event struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Description string    `json:"description"`
	Mood        Mood      `json:"mood"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventFields holds the writable columns of an event.
type EventFields struct {
	Title       string
	Date        string
	StartTime   string
	EndTime     string
	Description string
	Mood        Mood
}

type Participation struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
