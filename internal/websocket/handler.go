package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/huddle/internal/agenda"
	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/model"
)

// AgendaConfig wires the live agenda endpoint.
type AgendaConfig struct {
	Hub      *Hub
	Feed     changefeed.Feed
	Runner   agenda.Runner
	Location *time.Location
	Debounce time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

type clientMessage struct {
	Type  string `json:"type"`
	Month string `json:"month"`
}

type agendaMessage struct {
	Type       string              `json:"type"`
	Month      string              `json:"month"`
	Groups     []model.AgendaGroup `json:"groups"`
	Markers    model.MarkerMap     `json:"markers"`
	ComputedAt time.Time           `json:"computed_at"`
	Run        uint64              `json:"run"`
	Error      string              `json:"error,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func encodeState(st agenda.State) ([]byte, error) {
	msg := agendaMessage{
		Type:       "agenda",
		Month:      st.Snapshot.Month,
		Groups:     st.Snapshot.Groups,
		Markers:    st.Snapshot.Markers,
		ComputedAt: st.Snapshot.ComputedAt,
		Run:        st.Snapshot.Run,
	}
	if msg.Groups == nil {
		msg.Groups = []model.AgendaGroup{}
	}
	if msg.Markers == nil {
		msg.Markers = model.MarkerMap{}
	}
	if st.Err != nil {
		msg.Error = "agenda unavailable"
		if !errors.Is(st.Err, agenda.ErrFetchFailed) {
			msg.Error = st.Err.Error()
		}
	}
	return json.Marshal(msg)
}

// HandleAgenda upgrades an authenticated request to a WebSocket and keeps
// the caller's agenda for the selected month live on it. Each connection
// owns one agenda.Controller; it is deactivated when the connection ends.
func HandleAgenda(cfg AgendaConfig) http.HandlerFunc {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		month, err := agenda.ParseMonth(r.URL.Query().Get("month"), clock(), cfg.Location)
		if err != nil {
			http.Error(w, "invalid month", http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // token auth, not cookies
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		var ctrl *agenda.Controller
		var client *Client

		onMessage := func(_ context.Context, data []byte) {
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "month" {
				sendJSON(client, logger, errorMessage{Type: "error", Error: "unknown message"})
				return
			}
			m, err := agenda.ParseMonth(msg.Month, clock(), cfg.Location)
			if err != nil {
				sendJSON(client, logger, errorMessage{Type: "error", Error: "invalid month"})
				return
			}
			ctrl.SetMonth(m)
		}
		client = NewClient(cfg.Hub, conn, onMessage)

		ctrl = agenda.NewController(agenda.Config{
			Feed:     cfg.Feed,
			Runner:   cfg.Runner,
			UserID:   userID,
			Month:    month,
			Clock:    clock,
			Debounce: cfg.Debounce,
			Logger:   logger,
			OnUpdate: func(st agenda.State) {
				data, err := encodeState(st)
				if err != nil {
					logger.Error("marshal agenda", "error", err)
					return
				}
				client.Send(data)
			},
		})

		if err := ctrl.Activate(r.Context()); err != nil {
			logger.Error("activate agenda", "user_id", userID, "error", err)
			conn.Close(ws.StatusInternalError, "agenda unavailable")
			return
		}
		defer ctrl.Deactivate()

		client.Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}

func sendJSON(c *Client, logger *slog.Logger, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("marshal message", "error", err)
		return
	}
	c.Send(data)
}
