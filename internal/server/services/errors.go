package services

import "fmt"

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TokenPairError rejects both tokens of a refresh request at once. It is
// returned when the refresh token's stored owner does not match the access
// token's claimed owner, which is treated as evidence of compromise rather
// than a caller bug.
type TokenPairError struct {
	AccessToken  string
	RefreshToken string
}

func NewTokenPairError() *TokenPairError {
	return &TokenPairError{
		AccessToken:  "invalid token",
		RefreshToken: "invalid token",
	}
}

func (e *TokenPairError) Error() string {
	return "access token and refresh token are invalid"
}
