package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/huddle/internal/agenda"
	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/email"
	"github.com/dukerupert/huddle/internal/handler"
	"github.com/dukerupert/huddle/internal/middleware"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/validation"
	ws "github.com/dukerupert/huddle/internal/websocket"
)

// Options configures a Server.
type Options struct {
	Issuer         *auth.Issuer
	Location       *time.Location
	GraceDays      int
	AgendaDebounce time.Duration
	Clock          func() time.Time
	Mailer         handler.CodeSender
	LoginCodeTTL   time.Duration
}

type Server struct {
	hub          *ws.Hub
	issuer       *auth.Issuer
	eventH       *handler.EventHandler
	participantH *handler.ParticipantHandler
	agendaH      *handler.AgendaHandler
	authH        *handler.AuthHandler
	agendaWS     http.HandlerFunc
	rateLimiter  *middleware.RateLimiter
	loginCodes   *store.LoginCodeStore
	logger       *slog.Logger
}

func New(db *sql.DB, feed changefeed.Feed, opts Options, logger *slog.Logger) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	v := validation.New()

	mailer := opts.Mailer
	if mailer == nil {
		mailer = email.LogSender{Logger: logger.With("component", "email")}
	}
	codeTTL := opts.LoginCodeTTL
	if codeTTL == 0 {
		codeTTL = store.DefaultLoginCodeTTL
	}

	userStore := store.NewUserStore(db)
	loginCodes := store.NewLoginCodeStore(db, codeTTL)
	eventStore := store.NewEventStore(db, feed)
	participantStore := store.NewParticipantStore(db, feed)

	filter := agenda.TemporalFilter{GraceDays: opts.GraceDays, Location: loc}
	pipeline := agenda.NewPipeline(agenda.NewFetcher(participantStore, eventStore), filter)

	eventH := handler.NewEventHandler(eventStore, participantStore, v, logger.With("component", "event"))

	return &Server{
		hub:          hub,
		issuer:       opts.Issuer,
		eventH:       eventH,
		participantH: handler.NewParticipantHandler(eventH, participantStore, userStore, v, logger.With("component", "participant")),
		agendaH:      handler.NewAgendaHandler(pipeline, loc, clock, logger.With("component", "agenda")),
		authH:        handler.NewAuthHandler(userStore, loginCodes, mailer, opts.Issuer, v, logger.With("component", "auth")),
		agendaWS: ws.HandleAgenda(ws.AgendaConfig{
			Hub:      hub,
			Feed:     feed,
			Runner:   pipeline,
			Location: loc,
			Debounce: opts.AgendaDebounce,
			Clock:    clock,
			Logger:   logger.With("component", "agenda_ws"),
		}),
		rateLimiter: middleware.NewRateLimiter(6*time.Second, 10),
		loginCodes:  loginCodes,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// LoginCodes returns the login code store for cleanup tasks.
func (s *Server) LoginCodes() *store.LoginCodeStore {
	return s.loginCodes
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /api/auth/code", s.rateLimited(s.authH.RequestCode))
	outerMux.Handle("POST /api/auth/token", s.rateLimited(s.authH.Token))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	outerMux.Handle("/", middleware.RequireAuth(s.issuer)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)

	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)

	mux.HandleFunc("GET /api/events/{id}/participants", s.participantH.List)
	mux.HandleFunc("POST /api/events/{id}/participants", s.participantH.Add)
	mux.HandleFunc("DELETE /api/events/{id}/participants/{user_id}", s.participantH.Remove)

	mux.HandleFunc("GET /api/agenda", s.agendaH.Get)
	mux.HandleFunc("GET /api/agenda.ics", s.agendaH.ICS)

	mux.HandleFunc("GET /ws/agenda", s.agendaWS)
}
