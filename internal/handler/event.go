package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/validation"
)

type EventHandler struct {
	eventStore       *store.EventStore
	participantStore *store.ParticipantStore
	validator        *validation.Validator
	logger           *slog.Logger
}

func NewEventHandler(es *store.EventStore, ps *store.ParticipantStore, v *validation.Validator, logger *slog.Logger) *EventHandler {
	return &EventHandler{eventStore: es, participantStore: ps, validator: v, logger: logger}
}

type eventRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Date        string `json:"date" validate:"required,datekey"`
	StartTime   string `json:"start_time" validate:"required,clock"`
	EndTime     string `json:"end_time" validate:"required,clock"`
	Description string `json:"description" validate:"max=2000"`
	Mood        string `json:"mood" validate:"omitempty,oneof=blue purple pink green yellow"`
}

func (req *eventRequest) fields() model.EventFields {
	return model.EventFields{
		Title:       strings.TrimSpace(req.Title),
		Date:        req.Date,
		StartTime:   strings.TrimSpace(req.StartTime),
		EndTime:     strings.TrimSpace(req.EndTime),
		Description: req.Description,
		Mood:        model.ParseMood(req.Mood),
	}
}

// visibleEvent loads the {id} event and checks the caller can see it. It
// writes the error response and returns nil when they cannot. Events the
// caller cannot see are reported as not found.
func (h *EventHandler) visibleEvent(w http.ResponseWriter, r *http.Request) *model.Event {
	id := r.PathValue("id")
	userID := auth.UserID(r.Context())

	event, err := h.eventStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil
	}

	visible, err := h.participantStore.IsVisible(r.Context(), id, userID)
	if err != nil {
		h.logger.Error("check visibility", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil
	}
	if !visible {
		writeError(w, http.StatusNotFound, "event not found")
		return nil
	}
	return event
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	event, err := h.eventStore.Create(r.Context(), auth.UserID(r.Context()), req.fields())
	if err != nil {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// List returns every event visible to the caller, unfiltered by date.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.participantStore.EventIDsForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list participations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	events, err := h.eventStore.ListByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event := h.visibleEvent(w, r)
	if event == nil {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Update lets any participant edit the event.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.visibleEvent(w, r)
	if existing == nil {
		return
	}

	var req eventRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	event, err := h.eventStore.Update(r.Context(), existing.ID, req.fields())
	if err != nil {
		h.logger.Error("update event", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// Delete is owner-only.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.visibleEvent(w, r)
	if existing == nil {
		return
	}
	if existing.OwnerID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "only the owner can delete this event")
		return
	}

	if err := h.eventStore.Delete(r.Context(), existing.ID); err != nil {
		h.logger.Error("delete event", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
