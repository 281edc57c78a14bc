package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sealantern/go-auth-service/auth"
	"github.com/sealantern/go-auth-service/token"
)

const contentTypeJSON = "application/json; charset=utf-8"

type signupRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	Identifier string `json:"identifier"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SignupHandler registers a local identity (POST /auth/signup)
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, errors.New("username and password are required"))
			return
		}

		if err := s.auth.Signup(r.Context(), req.Username, req.Password, req.Email, req.Roles); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

// LoginHandler exchanges credentials for a token pair (POST /auth/login)
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		pair, err := s.auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// RefreshHandler exchanges a live refresh token for a new access token
// (POST /auth/refresh)
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		accessToken, err := s.auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: accessToken})
	}
}

// LogoutHandler revokes the identity's session record (POST /auth/logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logoutRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		if err := s.auth.Logout(r.Context(), req.Identifier); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return false
	}
	return true
}

// writeAuthError maps each failure kind to a stable status code so clients
// can tell "retry login" apart from "malformed request" apart from
// "backend unavailable".
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateUser):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, auth.ErrInvalidCredential),
		errors.Is(err, auth.ErrSessionMissing),
		errors.Is(err, auth.ErrSessionMismatch),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrInvalid):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, auth.ErrStoreUnavailable):
		log.Err(err).Msg("backing store unavailable")
		writeError(w, http.StatusServiceUnavailable, errors.New("service unavailable"))
	default:
		log.Err(err).Msg("unexpected auth failure")
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}
