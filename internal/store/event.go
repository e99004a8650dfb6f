package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/model"
)

type EventStore struct {
	db   *sql.DB
	feed changefeed.Publisher
}

func NewEventStore(db *sql.DB, feed changefeed.Publisher) *EventStore {
	return &EventStore{db: db, feed: feed}
}

const eventCols = `id, owner_id, title, date, start_time, end_time, description, mood, created_at, updated_at`

// scanEvent normalizes the row on the way in: a NULL description becomes
// "" and an unknown mood becomes blue.
func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var description, mood sql.NullString
	err := scanner.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Date, &e.StartTime, &e.EndTime, &description, &mood, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	e.Mood = model.ParseMood(mood.String)
	return &e, nil
}

// Create inserts an event owned by ownerID and links the owner as its first
// participant.
func (s *EventStore) Create(ctx context.Context, ownerID string, f model.EventFields) (*model.Event, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, owner_id, title, date, start_time, end_time, description, mood)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, f.Title, f.Date, f.StartTime, f.EndTime, f.Description, string(model.ParseMood(string(f.Mood))),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO event_participants (event_id, user_id) VALUES (?, ?)`,
		id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert owner participation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.publish(ctx, changefeed.TableEvents, changefeed.ActionCreated, id)
	s.publish(ctx, changefeed.TableParticipants, changefeed.ActionCreated, id)

	return s.GetByID(ctx, id)
}

func (s *EventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return e, nil
}

// ListByIDs returns the events whose ids appear in ids. Unknown ids are
// skipped. The result order is unspecified.
func (s *EventStore) ListByIDs(ctx context.Context, ids []string) ([]model.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.list(ctx, `SELECT `+eventCols+` FROM events WHERE id IN (`+placeholders+`)`, args...)
}

func (s *EventStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Event, error) {
	return s.list(ctx, `SELECT `+eventCols+` FROM events WHERE owner_id = ? ORDER BY date, created_at`, ownerID)
}

func (s *EventStore) list(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update replaces an event's fields. It returns nil without publishing when
// no event has the given id.
func (s *EventStore) Update(ctx context.Context, id string, f model.EventFields) (*model.Event, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, date = ?, start_time = ?, end_time = ?, description = ?, mood = ?
		 WHERE id = ?`,
		f.Title, f.Date, f.StartTime, f.EndTime, f.Description, string(model.ParseMood(string(f.Mood))), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	s.publish(ctx, changefeed.TableEvents, changefeed.ActionUpdated, id)

	return s.GetByID(ctx, id)
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.publish(ctx, changefeed.TableEvents, changefeed.ActionDeleted, id)
	return nil
}

func (s *EventStore) publish(ctx context.Context, table string, action changefeed.Action, id string) {
	publish(ctx, s.feed, changefeed.NewChange(table, action, id))
}
