// Package common contains shared constants and sentinel errors used across
// Meerkat components.
package common

// AuthorizationHeaderName is the HTTP header used to carry the access token
// on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the expected scheme prefix of the Authorization header.
const BearerPrefix = "Bearer "
