package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/model"
)

type ParticipantStore struct {
	db   *sql.DB
	feed changefeed.Publisher
}

func NewParticipantStore(db *sql.DB, feed changefeed.Publisher) *ParticipantStore {
	return &ParticipantStore{db: db, feed: feed}
}

// EventIDsForUser returns the ids of every event the user participates in
// or owns. An unknown user yields an empty slice.
func (s *ParticipantStore) EventIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id FROM event_participants WHERE user_id = ?
		 UNION
		 SELECT id FROM events WHERE owner_id = ?`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query participations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsVisible reports whether userID owns or participates in eventID.
func (s *ParticipantStore) IsVisible(ctx context.Context, eventID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM event_participants WHERE event_id = ? AND user_id = ?) +
		   (SELECT COUNT(*) FROM events WHERE id = ? AND owner_id = ?)`,
		eventID, userID, eventID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check visibility: %w", err)
	}
	return n > 0, nil
}

// Add links userID to eventID. Adding an existing link is a no-op.
func (s *ParticipantStore) Add(ctx context.Context, eventID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO event_participants (event_id, user_id) VALUES (?, ?)`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		publish(ctx, s.feed, changefeed.NewChange(changefeed.TableParticipants, changefeed.ActionCreated, eventID))
	}
	return nil
}

func (s *ParticipantStore) Remove(ctx context.Context, eventID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM event_participants WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		publish(ctx, s.feed, changefeed.NewChange(changefeed.TableParticipants, changefeed.ActionDeleted, eventID))
	}
	return nil
}

func (s *ParticipantStore) ListForEvent(ctx context.Context, eventID string) ([]model.Participation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, user_id, created_at FROM event_participants WHERE event_id = ? ORDER BY created_at, user_id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participation
	for rows.Next() {
		var p model.Participation
		if err := rows.Scan(&p.EventID, &p.UserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
