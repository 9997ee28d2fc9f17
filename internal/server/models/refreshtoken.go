package models

import "time"

// RefreshToken is a session row. Value is the opaque lookup key; rows are
// deleted and re-inserted on rotation, never updated in place.
type RefreshToken struct {
	Value     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Clone returns a detached copy of the token.
func (t *RefreshToken) Clone() *RefreshToken {
	c := *t
	return &c
}

// Expired reports whether the token's expiration is at or before now.
// The expiration bound is non-inclusive: ExpiresAt == now counts as expired.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
