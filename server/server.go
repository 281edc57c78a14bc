// Package server is the thin HTTP binding over the auth service. It owns
// routing, request decoding, and the failure-kind to status-code mapping;
// all auth semantics live in the auth package.
package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"github.com/sealantern/go-auth-service/auth"
	"github.com/sealantern/go-auth-service/internal/config"
	"golang.org/x/oauth2"
)

// Route path constants
const (
	RouteSignup  = "/auth/signup"
	RouteLogin   = "/auth/login"
	RouteRefresh = "/auth/refresh"
	RouteLogout  = "/auth/logout"

	RouteFederatedLogin    = "/auth/federated/login"
	RouteFederatedCallback = "/auth/federated/callback"
)

type oidcUpstream struct {
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	name         string
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config *config.Config
	auth   *auth.Service

	upstream     *oidcUpstream
	upstreamLock sync.RWMutex
}

func New(cfg *config.Config, authService *auth.Service) (*Server, error) {
	s := &Server{
		env:    cfg.Env,
		mux:    http.NewServeMux(),
		config: cfg,
		auth:   authService,
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteSignup, ChainMiddleware(s.SignupHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	if s.config.OIDC.Enabled() {
		s.RegisterRouteFunc("GET "+RouteFederatedLogin, ChainMiddleware(s.FederatedLoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteFunc("GET "+RouteFederatedCallback, ChainMiddleware(s.FederatedCallbackHandler(), s.APIMiddleware()...))
	}
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route registered")
		}
	}
}
