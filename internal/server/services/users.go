// Package services contains server-side business logic. This file implements
// UserService, the sign-up/log-in/refresh/revoke state machine that issues
// access tokens and rotates server-stored refresh tokens.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meerkat-app/meerkat/internal/common"
	"github.com/meerkat-app/meerkat/internal/dbx"
	"github.com/meerkat-app/meerkat/internal/logging"
	"github.com/meerkat-app/meerkat/internal/server/auth"
	"github.com/meerkat-app/meerkat/internal/server/config"
	"github.com/meerkat-app/meerkat/internal/server/cryptox"
	"github.com/meerkat-app/meerkat/internal/server/models"
	"github.com/meerkat-app/meerkat/internal/server/repositories/repomanager"
)

// UserInput carries the fields of a sign-up request. Email and Phone are
// optional.
type UserInput struct {
	Username string
	Password string
	Email    string
	Phone    string
}

// UserUpdate carries a partial profile update. Nil fields stay untouched.
// OldPassword re-authenticates the caller.
type UserUpdate struct {
	OldPassword string
	Username    *string
	Password    *string
	Email       *string
	Phone       *string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is a TokenPair plus a snapshot of the authenticated account.
type AuthResult struct {
	TokenPair
	User *models.User
}

// UserService provides authentication-related operations:
//   - SignUp: create an account and its first session
//   - LogIn: verify credentials and mint a new session
//   - Refresh: rotate refresh tokens and mint new access tokens
//   - Update/Delete: re-authenticated profile mutations
//   - LogOut: revoke a single session
type UserService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	hasher     *cryptox.Hasher
	tokens     *auth.Manager
	refreshTTL time.Duration
	logger     logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:         db,
		repos:      m,
		hasher:     cryptox.NewHasher(cfg.PasswordSalt, cfg.HashIterations),
		tokens:     auth.NewManager([]byte(cfg.SecretKey), cfg.Issuer, cfg.Audience, cfg.AccessTokenValidityDuration),
		refreshTTL: cfg.RefreshTokenValidityDuration,
		logger:     logger.With("module", "users_service"),
	}
}

// SignUp validates the input, creates the account, and mints its first
// session, all inside one transaction: a half-created account with no
// session is never observable.
func (s *UserService) SignUp(ctx context.Context, input UserInput) (*AuthResult, error) {
	if err := validateUserInput(input); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: s.hasher.HashPassword(input.Password),
		Email:        input.Email,
		Phone:        normalizePhone(input.Phone),
	}

	now := time.Now().UTC()
	var result *AuthResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		pair, err := s.issueSession(ctx, tx, created.ID, now)
		if err != nil {
			return err
		}
		result = &AuthResult{TokenPair: *pair, User: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LogIn verifies the provided credentials and, on success, mints a new
// session alongside any existing ones (multi-device sessions are allowed).
// Any mismatch yields common.ErrorLoginFailed; which field was wrong is
// never revealed.
func (s *UserService) LogIn(ctx context.Context, login, password string) (*AuthResult, error) {
	user, err := s.repos.Users(s.db).Login(ctx, login, s.hasher.HashPassword(password))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorLoginFailed
		}
		return nil, err
	}

	now := time.Now().UTC()
	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var genErr error
		pair, genErr = s.issueSession(ctx, tx, user.ID, now)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{TokenPair: *pair, User: user}, nil
}

// Refresh exchanges a consumed (access, refresh) pair for a fresh one.
// Rotation is single-use and atomic: the old session row is deleted in the
// same transaction that inserts its replacement, so a replayed value fails
// on its second use. A session whose stored owner disagrees with the access
// token's claimed owner is treated as an attack signal: every live session
// of both accounts is revoked before the rejection.
func (s *UserService) Refresh(ctx context.Context, accessToken, refreshValue string) (*TokenPair, error) {
	repo := s.repos.RefreshTokens(s.db)

	session, err := repo.Find(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		// Lazy reaping; the rejection stands even if the cleanup fails.
		if err := repo.Delete(ctx, refreshValue); err != nil {
			s.logger.Warn(ctx, "failed to reap expired refresh token", "error", err.Error())
		}
		return nil, common.ErrTokenExpired
	}

	// Signature, issuer and audience are checked; expiry deliberately is
	// not, since the access token has normally expired by now.
	claimedID, err := s.tokens.Subject(accessToken)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	if _, err := s.repos.Users(s.db).Get(ctx, claimedID); err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorInvalidArgument) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}

	if session.UserID != claimedID {
		s.revokeAllSessions(ctx, claimedID, session.UserID)
		return nil, NewTokenPairError()
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.RefreshTokens(tx).Delete(ctx, refreshValue); err != nil {
			return err
		}
		var genErr error
		pair, genErr = s.issueSession(ctx, tx, session.UserID, now)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Update re-authenticates the caller via their current password and applies
// the requested profile changes in one transaction. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *UserService) Update(ctx context.Context, id int64, upd UserUpdate) (*models.User, error) {
	user, err := s.reauthenticate(ctx, id, upd.OldPassword)
	if err != nil {
		return nil, err
	}

	if upd.Username != nil {
		if verr := validateUsername(*upd.Username); verr != nil {
			return nil, verr
		}
		user.Username = *upd.Username
	}
	if upd.Password != nil {
		if verr := validatePassword(*upd.Password); verr != nil {
			return nil, verr
		}
		user.PasswordHash = s.hasher.HashPassword(*upd.Password)
	}
	if upd.Email != nil {
		if verr := validateEmail(*upd.Email); verr != nil {
			return nil, verr
		}
		user.Email = *upd.Email
	}
	if upd.Phone != nil {
		if verr := validatePhone(*upd.Phone); verr != nil {
			return nil, verr
		}
		user.Phone = normalizePhone(*upd.Phone)
	}

	var updated *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var uerr error
		updated, uerr = s.repos.Users(tx).Update(ctx, user)
		return uerr
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorLoginFailed
		}
		return nil, err
	}
	return updated, nil
}

// Delete re-authenticates the caller and removes the account. Sessions fall
// with the account's foreign key cascade.
func (s *UserService) Delete(ctx context.Context, id int64, password string) error {
	if _, err := s.reauthenticate(ctx, id, password); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Users(tx).Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorLoginFailed
		}
		return err
	}
	return nil
}

// LogOut revokes a single session by its refresh-token value.
func (s *UserService) LogOut(ctx context.Context, refreshValue string) error {
	err := s.repos.RefreshTokens(s.db).Delete(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return err
	}
	return nil
}

// Get returns a snapshot of the account with the given id.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repos.Users(s.db).Get(ctx, id)
}

// VerifyAccessToken validates a bearer token and returns the account id it
// was issued to. Expired tokens yield common.ErrTokenExpired, anything else
// wrong with the token yields common.ErrInvalidToken.
func (s *UserService) VerifyAccessToken(token string) (int64, error) {
	return s.tokens.Validate(token, time.Now())
}

// --- helpers below ---

func (s *UserService) reauthenticate(ctx context.Context, id int64, password string) (*models.User, error) {
	user, err := s.repos.Users(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorInvalidArgument) {
			return nil, common.ErrorLoginFailed
		}
		return nil, err
	}
	if !checkHash(user.PasswordHash, s.hasher.HashPassword(password)) {
		return nil, common.ErrorLoginFailed
	}
	return user, nil
}

func checkHash(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// issueSession stores a new refresh token for userID and mints the paired
// access token. Callers run it inside WithTx so the session insert commits
// or rolls back with the rest of the operation.
func (s *UserService) issueSession(ctx context.Context, tx dbx.DBTX, userID int64, now time.Time) (*TokenPair, error) {
	refresh, err := auth.NewRefreshValue()
	if err != nil {
		return nil, common.ErrorInternal
	}

	token := &models.RefreshToken{
		Value:     refresh,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if _, err := s.repos.RefreshTokens(tx).Create(ctx, token); err != nil {
		return nil, err
	}

	access, err := s.tokens.Issue(userID, now)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// revokeAllSessions is the reuse-detection over-reaction: both the claimed
// and the actual owner lose every live session. Best effort; failures are
// logged, the rejection is returned regardless.
func (s *UserService) revokeAllSessions(ctx context.Context, ids ...int64) {
	repo := s.repos.RefreshTokens(s.db)
	revoked := map[int64]bool{}
	for _, id := range ids {
		if revoked[id] {
			continue
		}
		revoked[id] = true
		n, err := repo.DeleteAllByUser(ctx, id)
		if err != nil {
			s.logger.Error(ctx, "failed to revoke sessions", "user_id", id, "error", err.Error())
			continue
		}
		s.logger.Warn(ctx, "revoked all sessions after token ownership mismatch", "user_id", id, "sessions", n)
	}
}

func validateUserInput(input UserInput) error {
	if verr := validateUsername(input.Username); verr != nil {
		return verr
	}
	if verr := validatePassword(input.Password); verr != nil {
		return verr
	}
	if verr := validateEmail(input.Email); verr != nil {
		return verr
	}
	if verr := validatePhone(input.Phone); verr != nil {
		return verr
	}
	return nil
}
