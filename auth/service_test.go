package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sealantern/go-auth-service/auth"
	"github.com/sealantern/go-auth-service/session"
	"github.com/sealantern/go-auth-service/session/storefake"
	"github.com/sealantern/go-auth-service/token"
	"github.com/sealantern/go-auth-service/users"
	fakeuserrepo "github.com/sealantern/go-auth-service/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSigningKey   = "0123456789abcdef0123456789abcdef"
	testUsername     = "alice"
	testUserPassword = "pw123"
	testUserEmail    = "a@x.com"
)

// testFixture holds all test dependencies
type testFixture struct {
	directory *fakeuserrepo.FakeUserRepo
	store     *storefake.FakeSessionStore
	codec     *token.Codec
	service   *auth.Service
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T, options ...auth.ServiceOption) *testFixture {
	t.Helper()

	directory := fakeuserrepo.NewFakeUserRepo()
	store := storefake.NewFakeSessionStore()
	codec, err := token.NewCodec([]byte(testSigningKey))
	require.NoError(t, err)

	service, err := auth.NewService(directory, store, codec, options...)
	require.NoError(t, err)

	return &testFixture{
		directory: directory,
		store:     store,
		codec:     codec,
		service:   service,
	}
}

func (f *testFixture) signupTestUser(t *testing.T) {
	t.Helper()
	require.NoError(t, f.service.Signup(context.Background(), testUsername, testUserPassword, testUserEmail, nil))
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to baseline role", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		user, err := f.directory.GetByUsername(testUsername)
		require.NoError(t, err)
		assert.Equal(t, []string{users.DefaultRole}, user.Roles)
		assert.Equal(t, testUserEmail, user.Email)
		assert.NotEqual(t, testUserPassword, user.PasswordHash)
	})

	t.Run("keeps supplied roles as a set", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.Signup(ctx, "bob", "pw", "", []string{"ROLE_ADMIN", "ROLE_USER", "ROLE_ADMIN"})
		require.NoError(t, err)

		user, err := f.directory.GetByUsername("bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, user.Roles)
	})

	t.Run("duplicate username", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		err := f.service.Signup(ctx, testUsername, "other", "", nil)
		require.ErrorIs(t, err, auth.ErrDuplicateUser)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Login(ctx, "nobody", "pw")
		require.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		_, err := f.service.Login(ctx, testUsername, "wrong")
		require.ErrorIs(t, err, auth.ErrInvalidCredential)
	})

	t.Run("issues tokens and registers the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		pair, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		claims, err := f.codec.Verify(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, testUsername, claims.Subject())
		assert.Equal(t, []string{users.DefaultRole}, claims.Roles())

		stored, err := f.store.Get(ctx, testUsername)
		require.NoError(t, err)
		assert.Equal(t, pair.RefreshToken, stored)
	})

	t.Run("second login supersedes the first session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		first, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)
		second, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		stored, err := f.store.Get(ctx, testUsername)
		require.NoError(t, err)
		assert.Equal(t, second.RefreshToken, stored)
		assert.NotEqual(t, first.RefreshToken, stored)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a fresh access token for the same subject", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		pair, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		accessToken, err := f.service.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.AccessToken, accessToken)

		claims, err := f.codec.Verify(accessToken)
		require.NoError(t, err)
		assert.Equal(t, testUsername, claims.Subject())
		assert.Equal(t, []string{users.DefaultRole}, claims.Roles())
	})

	t.Run("does not rotate the refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		pair, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		stored, err := f.store.Get(ctx, testUsername)
		require.NoError(t, err)
		assert.Equal(t, pair.RefreshToken, stored)
	})

	t.Run("malformed token", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Refresh(ctx, "not-a-token")
		require.ErrorIs(t, err, token.ErrInvalid)
	})

	t.Run("no session registered", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		refreshToken, err := f.codec.Issue(testUsername, nil, time.Hour)
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, refreshToken)
		require.ErrorIs(t, err, auth.ErrSessionMissing)
	})

	t.Run("superseded token after a second login", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		first, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)
		second, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, first.RefreshToken)
		require.ErrorIs(t, err, auth.ErrSessionMismatch)

		_, err = f.service.Refresh(ctx, second.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("expired but still stored token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		past := time.Now().Add(-48 * time.Hour)
		backdated, err := token.NewCodec([]byte(testSigningKey), token.WithNowFunc(func() time.Time { return past }))
		require.NoError(t, err)
		expiredToken, err := backdated.Issue(testUsername, nil, time.Hour)
		require.NoError(t, err)

		require.NoError(t, f.store.Put(ctx, testUsername, expiredToken, time.Hour))

		_, err = f.service.Refresh(ctx, expiredToken)
		require.ErrorIs(t, err, token.ErrExpired)
	})

	t.Run("forged token matching the stored value", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		forger, err := token.NewCodec([]byte("another-signing-key-entirely-ok!"))
		require.NoError(t, err)
		forged, err := forger.Issue(testUsername, nil, time.Hour)
		require.NoError(t, err)

		require.NoError(t, f.store.Put(ctx, testUsername, forged, time.Hour))

		_, err = f.service.Refresh(ctx, forged)
		require.ErrorIs(t, err, token.ErrInvalid)
	})

	t.Run("session expired via ttl", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		pair, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		f.store.NowFunc = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, auth.ErrSessionMissing)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown identifier", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.service.Logout(ctx, "nobody")
		require.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("revokes the session by username", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		pair, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		require.NoError(t, f.service.Logout(ctx, testUsername))

		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, auth.ErrSessionMissing)
	})

	t.Run("resolves an email identifier", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		_, err := f.service.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)

		require.NoError(t, f.service.Logout(ctx, testUserEmail))

		_, err = f.store.Get(ctx, testUsername)
		require.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("succeeds without a live session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signupTestUser(t)

		require.NoError(t, f.service.Logout(ctx, testUsername))
	})
}

func TestFederatedLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the identity and keys the session by email", func(t *testing.T) {
		f := setupTestFixture(t)

		pair, err := f.service.FederatedLogin(ctx, "google", "carol@example.com", "carol")
		require.NoError(t, err)

		user, err := f.directory.GetByEmail("carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, "google", user.OAuthProvider)
		assert.Equal(t, []string{users.DefaultRole}, user.Roles)

		stored, err := f.store.Get(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, pair.RefreshToken, stored)
	})

	t.Run("refresh and logout use the email session key", func(t *testing.T) {
		f := setupTestFixture(t)

		pair, err := f.service.FederatedLogin(ctx, "google", "carol@example.com", "carol")
		require.NoError(t, err)

		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		require.NoError(t, f.service.Logout(ctx, "carol@example.com"))

		_, err = f.service.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, auth.ErrSessionMissing)
	})
}

// Signup through logout, end to end.
func TestSessionLifecycle(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Signup(ctx, testUsername, testUserPassword, testUserEmail, nil))

	pair, err := f.service.Login(ctx, testUsername, testUserPassword)
	require.NoError(t, err)

	accessToken, err := f.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, accessToken)

	claims, err := f.codec.Verify(accessToken)
	require.NoError(t, err)
	assert.Equal(t, testUsername, claims.Subject())

	require.NoError(t, f.service.Logout(ctx, testUsername))

	_, err = f.service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrSessionMissing)
}

// unavailableStore fails every call, standing in for an unreachable backend.
type unavailableStore struct{}

func (unavailableStore) Put(context.Context, string, string, time.Duration) error {
	return errors.Wrap(session.ErrUnavailable, "connection refused")
}

func (unavailableStore) Get(context.Context, string) (string, error) {
	return "", errors.Wrap(session.ErrUnavailable, "connection refused")
}

func (unavailableStore) Delete(context.Context, string) (bool, error) {
	return false, errors.Wrap(session.ErrUnavailable, "connection refused")
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()

	directory := fakeuserrepo.NewFakeUserRepo()
	codec, err := token.NewCodec([]byte(testSigningKey))
	require.NoError(t, err)
	service, err := auth.NewService(directory, unavailableStore{}, codec)
	require.NoError(t, err)

	require.NoError(t, service.Signup(ctx, testUsername, testUserPassword, testUserEmail, nil))

	_, err = service.Login(ctx, testUsername, testUserPassword)
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)

	refreshToken, err := codec.Issue(testUsername, nil, time.Hour)
	require.NoError(t, err)
	_, err = service.Refresh(ctx, refreshToken)
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)
	require.NotErrorIs(t, err, auth.ErrSessionMissing)

	err = service.Logout(ctx, testUsername)
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)
}
