package validation

import (
	"errors"
	"strings"
	"testing"
)

type eventBody struct {
	Title     string `json:"title" validate:"required,max=10"`
	Date      string `json:"date" validate:"required,datekey"`
	StartTime string `json:"start_time" validate:"required,clock"`
	Mood      string `json:"mood" validate:"omitempty,oneof=blue pink"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidateOK(t *testing.T) {
	v := New()
	body := eventBody{Title: "Standup", Date: "2025-06-10", StartTime: "9:30 am", Mood: "pink"}
	if err := v.Validate(body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFields(t *testing.T) {
	v := New()
	body := eventBody{
		Title:     "a very long title",
		Date:      "06/10/2025",
		StartTime: "half nine",
		Mood:      "orange",
		Email:     "nope",
	}

	err := v.Validate(body)
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}

	want := map[string]string{
		"title":      "must not exceed 10 characters",
		"date":       "must be a date in YYYY-MM-DD form",
		"start_time": "must be a time like 9:30 AM",
		"mood":       "must be one of: blue pink",
		"email":      "must be a valid email address",
	}
	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Errorf("%s: got %q, want %q", field, verr.Fields[field], msg)
		}
	}
	if !strings.HasPrefix(err.Error(), "validation failed: date ") {
		t.Errorf("Error() = %q, want sorted fields", err.Error())
	}
}

func TestValidateRequired(t *testing.T) {
	err := New().Validate(eventBody{})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if verr.Fields["title"] != "is required" {
		t.Errorf("title: %q", verr.Fields["title"])
	}
}

func TestValidateLoginCode(t *testing.T) {
	type body struct {
		Code string `json:"code" validate:"required,len=6,numeric"`
	}
	v := New()

	if err := v.Validate(body{Code: "123456"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var verr *Error
	if err := v.Validate(body{Code: "1234"}); !errors.As(err, &verr) || verr.Fields["code"] != "must be exactly 6 characters" {
		t.Errorf("short code: %v", err)
	}
	if err := v.Validate(body{Code: "12345a"}); !errors.As(err, &verr) || verr.Fields["code"] != "must contain only digits" {
		t.Errorf("non-numeric code: %v", err)
	}
}
