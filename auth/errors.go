package auth

import "github.com/pkg/errors"

// Failure kinds for the auth operations. All are terminal for the operation
// that raised them; callers branch with errors.Is. Token verification
// failures surface as token.ErrExpired / token.ErrInvalid.
var (
	ErrDuplicateUser     = errors.New("username already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrSessionMissing    = errors.New("refresh session missing or expired")
	ErrSessionMismatch   = errors.New("refresh token superseded")
	// ErrStoreUnavailable is an infrastructure failure of the session store
	// or the user directory. Never conflated with ErrSessionMissing:
	// missing-because-absent and missing-because-unreachable are distinct.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
