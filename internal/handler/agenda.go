package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/huddle/internal/agenda"
	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/ics"
)

type AgendaHandler struct {
	pipeline *agenda.Pipeline
	location *time.Location
	clock    func() time.Time
	logger   *slog.Logger
}

func NewAgendaHandler(p *agenda.Pipeline, loc *time.Location, clock func() time.Time, logger *slog.Logger) *AgendaHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AgendaHandler{pipeline: p, location: loc, clock: clock, logger: logger}
}

func (h *AgendaHandler) month(w http.ResponseWriter, r *http.Request, now time.Time) (time.Time, bool) {
	month, err := agenda.ParseMonth(r.URL.Query().Get("month"), now, h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return time.Time{}, false
	}
	return month, true
}

func (h *AgendaHandler) fetchFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, agenda.ErrFetchFailed) {
		h.logger.Warn("agenda fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "agenda unavailable")
		return
	}
	h.logger.Error("agenda", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to build agenda")
}

// Get computes a one-shot snapshot. An empty agenda is a 200 with no groups;
// a failed fetch is a 502.
func (h *AgendaHandler) Get(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	month, ok := h.month(w, r, now)
	if !ok {
		return
	}

	snap, err := h.pipeline.Run(r.Context(), auth.UserID(r.Context()), month, now)
	if err != nil {
		h.fetchFailed(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// ICS exports the same filtered events as an iCalendar feed.
func (h *AgendaHandler) ICS(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	month, ok := h.month(w, r, now)
	if !ok {
		return
	}

	events, err := h.pipeline.Events(r.Context(), auth.UserID(r.Context()), month, now)
	if err != nil {
		h.fetchFailed(w, err)
		return
	}

	loc := h.location
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	skipped, err := ics.Encode(&buf, "Agenda "+month.Format(agenda.MonthLayout), events, loc, now)
	if err != nil {
		h.logger.Error("encode ics", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export agenda")
		return
	}
	if len(skipped) > 0 {
		h.logger.Debug("events left out of ics export", "event_ids", skipped)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agenda-`+month.Format(agenda.MonthLayout)+`.ics"`)
	w.Write(buf.Bytes())
}
