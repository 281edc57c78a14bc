package users

import "github.com/pkg/errors"

// ErrNotFound is returned by Directory lookups that match no identity.
var ErrNotFound = errors.New("user not found")

// Directory is the external user store the auth core reads identities from.
// Lookups return ErrNotFound for a missing identity; any other error is an
// infrastructure failure.
type Directory interface {
	GetByUsername(username string) (*User, error)
	GetByEmail(email string) (*User, error)
	ExistsByUsername(username string) (bool, error)
	Upsert(user *User) error
}
