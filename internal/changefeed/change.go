// Package changefeed delivers "something changed" notifications for watched
// tables. Delivery is at-least-once at best and unordered across tables;
// consumers treat a Change as a signal to refetch, not as data.
package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	TableEvents       = "events"
	TableParticipants = "event_participants"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	// ActionResync reports that changes may have been missed and the
	// consumer should refetch everything.
	ActionResync Action = "resync"
)

var (
	// ErrClosed is returned when subscribing to or publishing on a closed feed.
	ErrClosed = errors.New("changefeed: closed")
	// ErrSubscriptionLost reports that the transport behind a subscription
	// went away. Missed changes are not replayed.
	ErrSubscriptionLost = errors.New("changefeed: subscription lost")
)

// Change is a row-level write notification.
type Change struct {
	Table  string    `json:"table"`
	Action Action    `json:"action"`
	ID     string    `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// NewChange stamps a Change with the current time.
func NewChange(table string, action Action, id string) Change {
	return Change{Table: table, Action: action, ID: id, At: time.Now().UTC()}
}

// Handler receives changes for one subscription. Calls for a single
// subscription are serialized.
type Handler func(Change)

// Feed is a publish/subscribe channel keyed by table name.
type Feed interface {
	Subscribe(table string, fn Handler) (*Subscription, error)
	Unsubscribe(sub *Subscription)
	Publish(ctx context.Context, c Change) error
	Close() error
}

// Publisher is the write side of a Feed.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Subscription is the handle returned by Feed.Subscribe.
type Subscription struct {
	id     uint64
	table  string
	once   sync.Once
	cancel func()
}

func newSubscription(id uint64, table string) *Subscription {
	return &Subscription{id: id, table: table}
}

// Table returns the watched table name.
func (s *Subscription) Table() string {
	return s.table
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
