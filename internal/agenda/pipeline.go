package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// MonthLayout is the wire form of a selected month.
const MonthLayout = "2006-01"

// ParseMonth parses "YYYY-MM" in loc. An empty string selects the month
// containing now.
func ParseMonth(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if s == "" {
		now = now.In(loc)
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	m, err := time.ParseInLocation(MonthLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return m, nil
}

// Runner computes a snapshot. *Pipeline is the production implementation.
type Runner interface {
	Run(ctx context.Context, userID string, month, now time.Time) (model.Snapshot, error)
}

// Pipeline runs fetch, filter, group and marker derivation in sequence.
type Pipeline struct {
	fetcher *Fetcher
	filter  TemporalFilter
}

func NewPipeline(fetcher *Fetcher, filter TemporalFilter) *Pipeline {
	return &Pipeline{fetcher: fetcher, filter: filter}
}

// Filter returns the temporal policy the pipeline applies.
func (p *Pipeline) Filter() TemporalFilter {
	return p.filter
}

// Events returns the visible events that survive the temporal filter for
// month, in fetch order.
func (p *Pipeline) Events(ctx context.Context, userID string, month, now time.Time) ([]model.Event, error) {
	events, err := p.fetcher.FetchVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.filter.Apply(events, month, now), nil
}

// Run builds a fresh snapshot. Nothing is carried over between calls.
func (p *Pipeline) Run(ctx context.Context, userID string, month, now time.Time) (model.Snapshot, error) {
	events, err := p.Events(ctx, userID, month, now)
	if err != nil {
		return model.Snapshot{}, err
	}

	groups := Group(events)
	return model.Snapshot{
		Month:      month.Format(MonthLayout),
		Groups:     groups,
		Markers:    DeriveMarkers(groups),
		ComputedAt: now,
	}, nil
}
