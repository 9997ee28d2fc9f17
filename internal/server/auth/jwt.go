// Package auth implements the token codec: signed access tokens carrying the
// account id as their sole identity claim, and opaque refresh-token values.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/meerkat-app/meerkat/internal/common"
)

// Manager issues and validates HS256 access tokens. Issuer, audience, and
// key material come from configuration and are verified on every use.
type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
}

func NewManager(secret []byte, issuer, audience string, accessTTL time.Duration) *Manager {
	return &Manager{
		secret:    secret,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}
}

// Issue returns a signed access token for userID with an expiry of
// now + access TTL.
func (m *Manager) Issue(userID int64, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    m.issuer,
		Audience:  jwt.ClaimStrings{m.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate verifies signature, issuer, audience, and that now falls within
// the token's validity window, then returns the embedded account id.
// Expired tokens yield common.ErrTokenExpired; every other defect yields
// common.ErrInvalidToken.
func (m *Manager) Validate(tokenString string, now time.Time) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}
	if !token.Valid {
		return 0, common.ErrInvalidToken
	}

	return subjectID(claims)
}

// Subject verifies signature, issuer, and audience but deliberately skips
// the lifetime check, then returns the embedded account id. The refresh
// protocol calls this with access tokens that are expected to have expired.
func (m *Manager) Subject(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, claims, m.keyFunc); err != nil {
		return 0, common.ErrInvalidToken
	}
	if claims.Issuer != m.issuer {
		return 0, common.ErrInvalidToken
	}
	if !audienceContains(claims.Audience, m.audience) {
		return 0, common.ErrInvalidToken
	}

	return subjectID(claims)
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	return m.secret, nil
}

func subjectID(claims *jwt.RegisteredClaims) (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
