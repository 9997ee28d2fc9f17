// Package models defines the server-side value objects persisted by the
// repositories. Instances returned by stores are detached copies: mutating
// them never affects stored state.
package models

import "time"

// User is an account row. Email and Phone are optional; Phone is stored
// normalized to digits only.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Phone        string
	CreatedAt    time.Time
}

// Clone returns a detached copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}
