package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
	"github.com/dukerupert/huddle/internal/validation"
)

type ParticipantHandler struct {
	events    *EventHandler
	store     *store.ParticipantStore
	users     *store.UserStore
	validator *validation.Validator
	logger    *slog.Logger
}

func NewParticipantHandler(events *EventHandler, ps *store.ParticipantStore, us *store.UserStore, v *validation.Validator, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{events: events, store: ps, users: us, validator: v, logger: logger}
}

type participantRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	event := h.events.visibleEvent(w, r)
	if event == nil {
		return
	}

	parts, err := h.store.ListForEvent(r.Context(), event.ID)
	if err != nil {
		h.logger.Error("list participants", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}
	if parts == nil {
		parts = []model.Participation{}
	}

	writeJSON(w, http.StatusOK, parts)
}

// Add is owner-only. Adding an existing participant is a no-op.
func (h *ParticipantHandler) Add(w http.ResponseWriter, r *http.Request) {
	event := h.events.visibleEvent(w, r)
	if event == nil {
		return
	}
	if event.OwnerID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "only the owner can add participants")
		return
	}

	var req participantRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	user, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("get user", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add participant")
		return
	}
	if user == nil {
		writeError(w, http.StatusBadRequest, "user not found")
		return
	}

	if err := h.store.Add(r.Context(), event.ID, user.ID); err != nil {
		h.logger.Error("add participant", "event_id", event.ID, "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add participant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Remove lets the owner remove anyone and a participant remove themselves.
func (h *ParticipantHandler) Remove(w http.ResponseWriter, r *http.Request) {
	event := h.events.visibleEvent(w, r)
	if event == nil {
		return
	}

	caller := auth.UserID(r.Context())
	target := r.PathValue("user_id")
	if event.OwnerID != caller && target != caller {
		writeError(w, http.StatusForbidden, "only the owner can remove other participants")
		return
	}
	if target == event.OwnerID {
		writeError(w, http.StatusBadRequest, "the owner cannot be removed")
		return
	}

	if err := h.store.Remove(r.Context(), event.ID, target); err != nil {
		h.logger.Error("remove participant", "event_id", event.ID, "user_id", target, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove participant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
