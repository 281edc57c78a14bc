package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const stateCookieName = "federated_auth_state"

// getUpstream lazily initializes the OIDC provider; discovery needs the
// network, so it cannot run at construction time.
func (s *Server) getUpstream(ctx context.Context) (*oidcUpstream, error) {
	s.upstreamLock.RLock()
	upstream := s.upstream
	s.upstreamLock.RUnlock()
	if upstream != nil {
		return upstream, nil
	}

	s.upstreamLock.Lock()
	defer s.upstreamLock.Unlock()
	if s.upstream != nil {
		return s.upstream, nil
	}

	provider, err := oidc.NewProvider(ctx, s.config.OIDC.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %q: %w", s.config.OIDC.Issuer, err)
	}

	s.upstream = &oidcUpstream{
		provider: provider,
		oauth2Config: &oauth2.Config{
			ClientID:     s.config.OIDC.ClientID,
			ClientSecret: s.config.OIDC.ClientSecret,
			RedirectURL:  s.config.OIDC.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: s.config.OIDC.ClientID}),
		name:     s.config.OIDC.ProviderName,
	}
	return s.upstream, nil
}

// FederatedLoginHandler starts the upstream authorization flow
// (GET /auth/federated/login)
func (s *Server) FederatedLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upstream, err := s.getUpstream(r.Context())
		if err != nil {
			log.Err(err).Msg("failed to initialize OIDC upstream")
			http.Error(w, "federated login unavailable", http.StatusServiceUnavailable)
			return
		}

		state := generateRandomString(32)
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     RouteFederatedCallback,
			MaxAge:   300,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, upstream.oauth2Config.AuthCodeURL(state), http.StatusFound)
	}
}

// FederatedCallbackHandler exchanges the authorization code, verifies the
// ID token, and issues the same token pair as a password login
// (GET /auth/federated/callback)
func (s *Server) FederatedCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		if errorParam := r.FormValue("error"); errorParam != "" {
			http.Error(w, fmt.Sprintf("authorization failed: %s - %s", errorParam, r.FormValue("error_description")), http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			http.Error(w, "missing code or state parameter", http.StatusBadRequest)
			return
		}

		cookie, err := r.Cookie(stateCookieName)
		if err != nil || cookie.Value == "" || cookie.Value != state {
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}

		upstream, err := s.getUpstream(r.Context())
		if err != nil {
			http.Error(w, "federated login unavailable", http.StatusServiceUnavailable)
			return
		}

		oauth2Token, err := upstream.oauth2Config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusBadGateway)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "no ID token in response", http.StatusBadGateway)
			return
		}

		idToken, err := upstream.verifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			http.Error(w, fmt.Sprintf("ID token verification failed: %v", err), http.StatusUnauthorized)
			return
		}

		var claims struct {
			Email             string `json:"email"`
			PreferredUsername string `json:"preferred_username"`
			Name              string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, "failed to extract claims", http.StatusBadGateway)
			return
		}
		if claims.Email == "" {
			http.Error(w, "upstream identity has no email", http.StatusUnauthorized)
			return
		}

		username := claims.PreferredUsername
		if username == "" {
			username = claims.Email
		}

		pair, err := s.auth.FederatedLogin(r.Context(), upstream.name, claims.Email, username)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

func generateRandomString(length int) string {
	bytes := make([]byte, length)
	_, _ = rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}
