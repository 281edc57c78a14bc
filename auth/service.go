// Package auth orchestrates signup, login, refresh, and logout over the
// token codec, the session store, and the user directory.
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sealantern/go-auth-service/session"
	"github.com/sealantern/go-auth-service/token"
	"github.com/sealantern/go-auth-service/users"
)

const (
	// DefaultAccessTokenTTL is the access token lifetime. Access tokens are
	// self-validating and trusted until natural expiry.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the refresh token lifetime; it also bounds
	// the session record's TTL in the store.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenPair is the login response: a short-lived access token and the
// longer-lived refresh token now registered as the identity's live session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service combines the token codec, session store, and user directory.
// At most one refresh token is live per identity: login overwrites the
// previous session record, logout deletes it.
type Service struct {
	directory  users.Directory
	store      session.Store
	codec      *token.Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger sets the service logger (advisory logging only; no operation's
// success depends on it).
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenTTLs overrides the access and refresh token lifetimes.
func WithTokenTTLs(accessTTL, refreshTTL time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessTTL = accessTTL
		s.refreshTTL = refreshTTL
	}
}

// NewService initializes a Service with required dependencies.
func NewService(directory users.Directory, store session.Store, codec *token.Codec, options ...ServiceOption) (*Service, error) {
	if directory == nil {
		return nil, errors.New("[NewService] user directory is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	if codec == nil {
		return nil, errors.New("[NewService] token codec is required")
	}

	service := &Service{
		directory:  directory,
		store:      store,
		codec:      codec,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(service)
	}

	if service.accessTTL <= 0 || service.refreshTTL <= 0 {
		return nil, errors.New("[NewService] token TTLs must be positive")
	}
	return service, nil
}

// Signup registers a local identity. No tokens are issued; the caller logs
// in separately. An empty role set defaults to the baseline role.
func (s *Service) Signup(ctx context.Context, username, password, email string, roles []string) error {
	exists, err := s.directory.ExistsByUsername(username)
	if err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "[Service.Signup] ExistsByUsername: %s", err)
	}
	if exists {
		return ErrDuplicateUser
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Service.Signup] HashPassword")
	}

	roleSet := users.NormalizeRoles(roles)
	if len(roleSet) == 0 {
		roleSet = []string{users.DefaultRole}
	}

	if err := s.directory.Upsert(&users.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        roleSet,
	}); err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "[Service.Signup] Upsert: %s", err)
	}

	s.logger.Info().Str("username", username).Msg("user registered")
	return nil
}

// Login checks credentials and issues a token pair. The new refresh token
// overwrites any prior session record for the identity, enforcing the
// single-active-session invariant.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.lookup(s.directory.GetByUsername, username)
	if err != nil {
		return nil, err
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredential
	}

	return s.issueSession(ctx, user)
}

// FederatedLogin records an identity authenticated by an upstream provider
// and issues the same token pair as a password login. The identity is
// created on first sight; its session is keyed by email.
func (s *Service) FederatedLogin(ctx context.Context, provider, email, username string) (*TokenPair, error) {
	if provider == "" || email == "" {
		return nil, ErrInvalidCredential
	}

	user, err := s.directory.GetByEmail(email)
	if errors.Is(err, users.ErrNotFound) {
		user = &users.User{
			Username:      username,
			Email:         email,
			Roles:         []string{users.DefaultRole},
			OAuthProvider: provider,
		}
		if upsertErr := s.directory.Upsert(user); upsertErr != nil {
			return nil, errors.Wrapf(ErrStoreUnavailable, "[Service.FederatedLogin] Upsert: %s", upsertErr)
		}
	} else if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "[Service.FederatedLogin] GetByEmail: %s", err)
	}

	return s.issueSession(ctx, user)
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated; a single refresh token is reused until it
// naturally expires or logout revokes it. Checks run in order: subject
// decode, session presence, session match, then signature/expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	subject, err := s.codec.DecodeSubject(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := s.lookup(s.directory.GetByUsername, subject)
	if err != nil {
		return "", err
	}
	sessionKey := user.SessionKey()

	stored, err := s.store.Get(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrSessionMissing
		}
		return "", errors.Wrapf(ErrStoreUnavailable, "[Service.Refresh] store get: %s", err)
	}

	if stored != refreshToken {
		// A later login superseded this token; replay of the losing token
		// from a login race lands here as well.
		s.logger.Info().Str("session_key", sessionKey).Msg("stale refresh token presented")
		return "", ErrSessionMismatch
	}

	if _, err := s.codec.Verify(refreshToken); err != nil {
		if errors.Is(err, token.ErrExpired) {
			s.logger.Debug().Str("session_key", sessionKey).Msg("refresh token expired")
		} else {
			s.logger.Warn().Str("session_key", sessionKey).Msg("refresh token failed signature verification")
		}
		return "", err
	}

	return s.issueAccessToken(user)
}

// Logout resolves the identifier as a username first, then as an email, and
// deletes the identity's session record. Whether a record existed is logged
// but does not affect the outcome.
func (s *Service) Logout(ctx context.Context, identifier string) error {
	user, err := s.lookup(s.directory.GetByUsername, identifier)
	if errors.Is(err, ErrUserNotFound) {
		user, err = s.lookup(s.directory.GetByEmail, identifier)
	}
	if err != nil {
		return err
	}

	existed, err := s.store.Delete(ctx, user.SessionKey())
	if err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "[Service.Logout] store delete: %s", err)
	}

	if existed {
		s.logger.Info().Str("username", user.Username).Msg("session revoked")
	} else {
		s.logger.Info().Str("username", user.Username).Msg("logout without live session")
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user *users.User) (*TokenPair, error) {
	accessToken, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.codec.Issue(user.Username, nil, s.refreshTTL)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issueSession] issue refresh token")
	}

	if err := s.store.Put(ctx, user.SessionKey(), refreshToken, s.refreshTTL); err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "[Service.issueSession] store put: %s", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) issueAccessToken(user *users.User) (string, error) {
	accessToken, err := s.codec.Issue(user.Username, map[string]any{"roles": user.Roles}, s.accessTTL)
	if err != nil {
		return "", errors.Wrap(err, "[Service.issueAccessToken] issue access token")
	}
	return accessToken, nil
}

func (s *Service) lookup(get func(string) (*users.User, error), identifier string) (*users.User, error) {
	user, err := get(identifier)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "[Service.lookup] directory: %s", err)
	}
	return user, nil
}
