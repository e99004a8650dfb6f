package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/huddle/internal/agenda"
	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/validation"
)

var juneNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db     *sql.DB
	mux    *http.ServeMux
	users  *store.UserStore
	events *store.EventStore
	parts  *store.ParticipantStore
	issuer *auth.Issuer
	mailer *captureSender
}

// captureSender records the last code sent to each address.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendLoginCode(_ context.Context, toEmail, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[toEmail] = code
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWithCodeTTL(t, store.DefaultLoginCodeTTL)
}

func setupWithCodeTTL(t *testing.T, codeTTL time.Duration) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	feed := changefeed.NewBroker(slog.Default())
	t.Cleanup(func() {
		feed.Close()
		db.Close()
	})

	f := &fixture{
		db:     db,
		mux:    http.NewServeMux(),
		users:  store.NewUserStore(db),
		events: store.NewEventStore(db, feed),
		parts:  store.NewParticipantStore(db, feed),
		issuer: auth.NewIssuer("test-secret", time.Hour),
		mailer: &captureSender{},
	}

	v := validation.New()
	logger := slog.Default()
	pipeline := agenda.NewPipeline(agenda.NewFetcher(f.parts, f.events), agenda.NewTemporalFilter(time.UTC))

	eventH := NewEventHandler(f.events, f.parts, v, logger)
	partH := NewParticipantHandler(eventH, f.parts, f.users, v, logger)
	agendaH := NewAgendaHandler(pipeline, time.UTC, func() time.Time { return juneNow }, logger)
	authH := NewAuthHandler(f.users, store.NewLoginCodeStore(db, codeTTL), f.mailer, f.issuer, v, logger)

	f.mux.HandleFunc("POST /api/auth/code", authH.RequestCode)
	f.mux.HandleFunc("POST /api/auth/token", authH.Token)
	f.mux.HandleFunc("GET /api/me", authH.Me)
	f.mux.HandleFunc("POST /api/events", eventH.Create)
	f.mux.HandleFunc("GET /api/events", eventH.List)
	f.mux.HandleFunc("GET /api/events/{id}", eventH.Get)
	f.mux.HandleFunc("PUT /api/events/{id}", eventH.Update)
	f.mux.HandleFunc("DELETE /api/events/{id}", eventH.Delete)
	f.mux.HandleFunc("GET /api/events/{id}/participants", partH.List)
	f.mux.HandleFunc("POST /api/events/{id}/participants", partH.Add)
	f.mux.HandleFunc("DELETE /api/events/{id}/participants/{user_id}", partH.Remove)
	f.mux.HandleFunc("GET /api/agenda", agendaH.Get)
	f.mux.HandleFunc("GET /api/agenda.ics", agendaH.ICS)
	return f
}

func (f *fixture) user(t *testing.T, email string) string {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, email)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (f *fixture) event(t *testing.T, owner, title, date string) *model.Event {
	t.Helper()
	e, err := f.events.Create(context.Background(), owner, model.EventFields{
		Title: title, Date: date, StartTime: "9:00 AM", EndTime: "10:00 AM", Mood: model.MoodPink,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

// do sends a request as userID; an empty userID sends it anonymously.
func (f *fixture) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req = req.WithContext(auth.WithSession(req.Context(), auth.Session{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return v
}
