package model

import "time"

// LoginCode is a single-use sign-in code sent to an email address. Only its
// bcrypt hash is stored.
type LoginCode struct {
	ID        int64
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	UsedAt    *time.Time
	Attempts  int
	CreatedAt time.Time
}
