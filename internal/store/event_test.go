package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/model"
)

type eventFixture struct {
	db     *sql.DB
	events *EventStore
	parts  *ParticipantStore
	users  *UserStore
	feed   *recordingFeed
}

func setupEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	db := setupTestDB(t)
	feed := &recordingFeed{}
	return &eventFixture{
		db:     db,
		events: NewEventStore(db, feed),
		parts:  NewParticipantStore(db, feed),
		users:  NewUserStore(db),
		feed:   feed,
	}
}

func (f *eventFixture) user(t *testing.T, email string) string {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, email)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func sampleFields(title, date string) model.EventFields {
	return model.EventFields{
		Title:     title,
		Date:      date,
		StartTime: "9:00 AM",
		EndTime:   "10:00 AM",
		Mood:      model.MoodGreen,
	}
}

func TestEventCreateAndGetByID(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice@example.com")

	fields := sampleFields("Picnic", "2024-06-20")
	fields.Description = "Bring snacks"
	event, err := f.events.Create(ctx, owner, fields)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected generated id")
	}
	if event.OwnerID != owner {
		t.Errorf("owner = %q, want %q", event.OwnerID, owner)
	}
	if event.Title != "Picnic" || event.Date != "2024-06-20" {
		t.Errorf("got %q on %q, want Picnic on 2024-06-20", event.Title, event.Date)
	}
	if event.Mood != model.MoodGreen {
		t.Errorf("mood = %q, want green", event.Mood)
	}
	if event.Description != "Bring snacks" {
		t.Errorf("description = %q", event.Description)
	}

	got, err := f.events.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil || got.Title != "Picnic" {
		t.Errorf("got %+v, want Picnic", got)
	}
}

func TestEventCreateLinksOwner(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice@example.com")

	event, err := f.events.Create(ctx, owner, sampleFields("Picnic", "2024-06-20"))
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	parts, err := f.parts.ListForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(parts) != 1 || parts[0].UserID != owner {
		t.Errorf("participants = %+v, want only owner", parts)
	}

	changes := f.feed.snapshot()
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].Table != changefeed.TableEvents || changes[0].Action != changefeed.ActionCreated {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1].Table != changefeed.TableParticipants {
		t.Errorf("second change = %+v", changes[1])
	}
}

func TestEventGetByIDNotFound(t *testing.T) {
	f := setupEventFixture(t)

	got, err := f.events.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestEventNormalizesMoodAndDescription(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice@example.com")

	// Rows written by other clients may carry NULLs or unknown moods.
	_, err := f.db.Exec(
		`INSERT INTO events (id, owner_id, title, date, start_time, end_time, description, mood)
		 VALUES ('raw-1', ?, 'Raw', '2024-06-20', '9:00 AM', '10:00 AM', NULL, 'magenta'),
		        ('raw-2', ?, 'Raw 2', '2024-06-20', '9:00 AM', '10:00 AM', NULL, NULL)`,
		owner, owner,
	)
	if err != nil {
		t.Fatalf("insert raw events: %v", err)
	}

	events, err := f.events.ListByIDs(ctx, []string{"raw-1", "raw-2"})
	if err != nil {
		t.Fatalf("list by ids: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, e := range events {
		if e.Mood != model.MoodBlue {
			t.Errorf("%s mood = %q, want blue", e.ID, e.Mood)
		}
		if e.Description != "" {
			t.Errorf("%s description = %q, want empty", e.ID, e.Description)
		}
	}
}

func TestEventListByIDs(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice@example.com")

	a, _ := f.events.Create(ctx, owner, sampleFields("A", "2024-06-20"))
	f.events.Create(ctx, owner, sampleFields("B", "2024-06-21"))
	c, _ := f.events.Create(ctx, owner, sampleFields("C", "2024-06-22"))

	events, err := f.events.ListByIDs(ctx, []string{a.ID, c.ID, "missing"})
	if err != nil {
		t.Fatalf("list by ids: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	titles := map[string]bool{}
	for _, e := range events {
		titles[e.Title] = true
	}
	if !titles["A"] || !titles["C"] {
		t.Errorf("titles = %v, want A and C", titles)
	}

	empty, err := f.events.ListByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("list by empty ids: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no events for empty id set, got %d", len(empty))
	}
}

func TestEventListByOwner(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")

	f.events.Create(ctx, alice, sampleFields("Later", "2024-06-22"))
	f.events.Create(ctx, alice, sampleFields("Sooner", "2024-06-20"))
	f.events.Create(ctx, bob, sampleFields("Bob's", "2024-06-21"))

	events, err := f.events.ListByOwner(ctx, alice)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Title != "Sooner" {
		t.Errorf("first event = %q, want %q", events[0].Title, "Sooner")
	}
}

func TestEventUpdate(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice@example.com")

	event, err := f.events.Create(ctx, owner, sampleFields("Original", "2024-06-20"))
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	updated, err := f.events.Update(ctx, event.ID, model.EventFields{
		Title:     "Renamed",
		Date:      "2024-06-21",
		StartTime: "2:00 PM",
		EndTime:   "1:00 PM",
		Mood:      "pink",
	})
	if err != nil {
		t.Fatalf("update event: %v", err)
	}
	if updated.Title != "Renamed" || updated.Date != "2024-06-21" {
		t.Errorf("got %q on %q", updated.Title, updated.Date)
	}
	if updated.EndTime != "1:00 PM" {
		t.Errorf("end_time = %q, want stored as given", updated.EndTime)
	}
	if updated.Mood != model.MoodPink {
		t.Errorf("mood = %q, want pink", updated.Mood)
	}

	changes := f.feed.snapshot()
	last := changes[len(changes)-1]
	if last.Action != changefeed.ActionUpdated || last.ID != event.ID {
		t.Errorf("last change = %+v, want update of %s", last, event.ID)
	}
}

func TestEventUpdateMissing(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()

	got, err := f.events.Update(ctx, "no-such-event", sampleFields("Ghost", "2024-06-20"))
	if err != nil {
		t.Fatalf("update missing event: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	if changes := f.feed.snapshot(); len(changes) != 0 {
		t.Errorf("published %d changes for a missing event: %+v", len(changes), changes)
	}
}

func TestEventDeleteCascadesParticipants(t *testing.T) {
	f := setupEventFixture(t)
	ctx := context.Background()
	owner := f.user(t, "alice@example.com")
	guest := f.user(t, "bob@example.com")

	event, _ := f.events.Create(ctx, owner, sampleFields("Doomed", "2024-06-20"))
	if err := f.parts.Add(ctx, event.ID, guest); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	if err := f.events.Delete(ctx, event.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	got, err := f.events.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("get by id after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}

	ids, err := f.parts.EventIDsForUser(ctx, guest)
	if err != nil {
		t.Fatalf("event ids for guest: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("guest still linked to %v", ids)
	}
}
