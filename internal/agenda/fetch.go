// Package agenda turns the events visible to a user into a month's agenda:
// fetch, filter, group by date, derive calendar markers, and keep the result
// in step with the change feed.
package agenda

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
)

// ErrFetchFailed marks any failure to load the visible event set. Callers
// use errors.Is to tell it apart from an empty agenda.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError carries the lookup stage that failed and the underlying cause.
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFetchFailed, e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// ParticipationReader resolves which events a user can see.
type ParticipationReader interface {
	EventIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// EventReader loads full event records.
type EventReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]model.Event, error)
}

type Fetcher struct {
	participants ParticipationReader
	events       EventReader
}

func NewFetcher(p ParticipationReader, e EventReader) *Fetcher {
	return &Fetcher{participants: p, events: e}
}

// FetchVisible returns every event userID owns or participates in, in no
// particular order. An empty or unknown user yields no events and no error.
func (f *Fetcher) FetchVisible(ctx context.Context, userID string) ([]model.Event, error) {
	if userID == "" {
		return nil, nil
	}

	ids, err := f.participants.EventIDsForUser(ctx, userID)
	if err != nil {
		return nil, &FetchError{Stage: "participations", Err: err}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	events, err := f.events.ListByIDs(ctx, ids)
	if err != nil {
		return nil, &FetchError{Stage: "events", Err: err}
	}
	return events, nil
}
