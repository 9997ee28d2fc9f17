// Package common defines shared constants and sentinel errors used across
// Meerkat components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrorOwnerNotFound   = errors.New("owner not found")
	ErrorAlreadyExists   = errors.New("already exists")
	ErrorUsernameTaken   = errors.New("username is already taken")
	ErrorExpired         = errors.New("already expired")
	ErrorInvalidArgument = errors.New("invalid argument")

	// Transaction errors (one transaction per logical operation, no nesting).
	ErrorIllegalState = errors.New("illegal transaction state")

	// Service-level errors (generic/internal flow control).
	ErrorInternal    = errors.New("internal error")
	ErrorLoginFailed = errors.New("login failed")

	// Token lifecycle errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
