// Package httpapi exposes the user and session operations as a JSON API
// over net/http. It owns request decoding, bearer-token guarding, and the
// mapping from service errors to HTTP status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meerkat-app/meerkat/internal/common"
	"github.com/meerkat-app/meerkat/internal/logging"
	"github.com/meerkat-app/meerkat/internal/server/models"
	"github.com/meerkat-app/meerkat/internal/server/services"
)

const maxBodySize = 1 << 20

// Server holds the handler dependencies.
type Server struct {
	users  *services.UserService
	logger logging.Logger
}

// NewServer returns a Server backed by the given user service.
func NewServer(users *services.UserService, logger logging.Logger) *Server {
	return &Server{
		users:  users,
		logger: logger.With("module", "httpapi"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", s.handleSignUp)
	mux.HandleFunc("POST /api/users/login", s.handleLogIn)
	mux.HandleFunc("POST /api/users/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/users/logout", s.handleLogOut)
	mux.HandleFunc("GET /api/users/{id}", s.requireSelf(s.handleGet))
	mux.HandleFunc("PUT /api/users/{id}", s.requireSelf(s.handleUpdate))
	mux.HandleFunc("DELETE /api/users/{id}", s.requireSelf(s.handleDelete))
	return mux
}

type userPayload struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authPayload struct {
	User userPayload `json:"user"`
	tokenPayload
}

type errorPayload struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toUserPayload(u *models.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

func toAuthPayload(res *services.AuthResult) authPayload {
	return authPayload{
		User: toUserPayload(res.User),
		tokenPayload: tokenPayload{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
		},
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.users.SignUp(r.Context(), services.UserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toAuthPayload(res))
}

func (s *Server) handleLogIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.users.LogIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAuthPayload(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenPayload
	if !s.decode(w, r, &req) {
		return
	}

	pair, err := s.users.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenPayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleLogOut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.users.LogOut(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserPayload(user))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var req struct {
		OldPassword string  `json:"old_password"`
		Username    *string `json:"username"`
		Password    *string `json:"password"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.users.Update(r.Context(), id, services.UserUpdate{
		OldPassword: req.OldPassword,
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserPayload(user))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	var req struct {
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.users.Delete(r.Context(), id, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireSelf guards the /api/users/{id} routes: the bearer token must be
// valid and its subject must be the account named in the path.
func (s *Server) requireSelf(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			s.writeStatus(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		subject, err := s.users.VerifyAccessToken(strings.TrimPrefix(header, common.BearerPrefix))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			s.writeStatus(w, http.StatusNotFound, "no such user")
			return
		}
		if subject != id {
			s.writeStatus(w, http.StatusForbidden, "forbidden")
			return
		}

		next(w, r, id)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err.Error())
	}
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorPayload{Error: msg})
}

// writeError translates service errors into HTTP statuses. Internal details
// never reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		s.writeJSON(w, http.StatusBadRequest, errorPayload{Error: verr.Reason, Field: verr.Field})
		return
	}

	var pairErr *services.TokenPairError
	if errors.As(err, &pairErr) {
		s.writeStatus(w, http.StatusBadRequest, pairErr.Error())
		return
	}

	switch {
	case errors.Is(err, common.ErrInvalidToken):
		s.writeStatus(w, http.StatusBadRequest, "invalid token")
	case errors.Is(err, common.ErrorInvalidArgument):
		s.writeStatus(w, http.StatusBadRequest, "invalid argument")
	case errors.Is(err, common.ErrorLoginFailed):
		s.writeStatus(w, http.StatusUnauthorized, "login failed")
	case errors.Is(err, common.ErrTokenExpired):
		s.writeStatus(w, http.StatusForbidden, "token expired")
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorOwnerNotFound):
		s.writeStatus(w, http.StatusNotFound, "no such user")
	case errors.Is(err, common.ErrorUsernameTaken), errors.Is(err, common.ErrorAlreadyExists):
		s.writeStatus(w, http.StatusConflict, "username already taken")
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		s.writeStatus(w, http.StatusInternalServerError, "internal error")
	}
}
