package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/database"
)

// recordingFeed captures published changes.
type recordingFeed struct {
	mu      sync.Mutex
	changes []changefeed.Change
}

func (f *recordingFeed) Publish(_ context.Context, c changefeed.Change) error {
	f.mu.Lock()
	f.changes = append(f.changes, c)
	f.mu.Unlock()
	return nil
}

func (f *recordingFeed) snapshot() []changefeed.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]changefeed.Change(nil), f.changes...)
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
