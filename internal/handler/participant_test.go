package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/huddle/internal/model"
)

func TestAddAndListParticipants(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	e := f.event(t, alice, "Picnic", "2024-06-20")

	rec := f.do(t, alice, "POST", "/api/events/"+e.ID+"/participants", map[string]string{"user_id": bob})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Adding twice is a no-op.
	if rec := f.do(t, alice, "POST", "/api/events/"+e.ID+"/participants", map[string]string{"user_id": bob}); rec.Code != http.StatusNoContent {
		t.Errorf("re-add: status = %d", rec.Code)
	}

	rec = f.do(t, bob, "GET", "/api/events/"+e.ID+"/participants", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	parts := decode[[]model.Participation](t, rec)
	users := map[string]bool{}
	for _, p := range parts {
		users[p.UserID] = true
	}
	if len(parts) != 2 || !users[alice] || !users[bob] {
		t.Errorf("participants = %+v", parts)
	}
}

func TestAddParticipantRejects(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	e := f.event(t, alice, "Picnic", "2024-06-20")
	if err := f.parts.Add(t.Context(), e.ID, bob); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	carol := f.user(t, "carol@example.com")

	path := "/api/events/" + e.ID + "/participants"
	if rec := f.do(t, bob, "POST", path, map[string]string{"user_id": carol}); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner add: status = %d, want 403", rec.Code)
	}
	if rec := f.do(t, alice, "POST", path, map[string]string{"user_id": "not-a-uuid"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, alice, "POST", path, map[string]string{"user_id": "8f14e45f-ceea-4e67-a1b2-0123456789ab"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown user: status = %d, want 400", rec.Code)
	}
}

func TestRemoveParticipant(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	carol := f.user(t, "carol@example.com")
	e := f.event(t, alice, "Picnic", "2024-06-20")
	for _, u := range []string{bob, carol} {
		if err := f.parts.Add(t.Context(), e.ID, u); err != nil {
			t.Fatalf("add participant: %v", err)
		}
	}

	base := "/api/events/" + e.ID + "/participants/"
	if rec := f.do(t, bob, "DELETE", base+carol, nil); rec.Code != http.StatusForbidden {
		t.Errorf("remove other: status = %d, want 403", rec.Code)
	}
	if rec := f.do(t, bob, "DELETE", base+bob, nil); rec.Code != http.StatusNoContent {
		t.Errorf("leave: status = %d, want 204", rec.Code)
	}
	if rec := f.do(t, bob, "GET", "/api/events/"+e.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("after leaving: status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, alice, "DELETE", base+carol, nil); rec.Code != http.StatusNoContent {
		t.Errorf("owner remove: status = %d, want 204", rec.Code)
	}
	if rec := f.do(t, alice, "DELETE", base+alice, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("remove owner: status = %d, want 400", rec.Code)
	}
}
