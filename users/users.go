// Package users models identities and credentials. The backing directory is
// an external collaborator; this package only defines its contract, the
// identity value, and password hashing.
package users

import (
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultRole is assigned at signup when no role set is supplied.
const DefaultRole = "ROLE_USER"

type User struct {
	ID            string    `json:"id,omitempty"`             // Unique identifier for the user
	Username      string    `json:"username,omitempty"`       // Unique username
	Email         string    `json:"email,omitempty"`          // Optional; present for federated identities
	PasswordHash  string    `json:"-"`                        // Hashed password - never serialize
	Roles         []string  `json:"roles,omitempty"`          // Role set, normalized
	OAuthProvider string    `json:"oauth_provider,omitempty"` // Non-empty when the identity came from a social login
	DateJoined    time.Time `json:"date_joined,omitempty"`    // When the user registered
}

// SessionKey is the store key that locates this identity's current refresh
// token: the email for federated identities, the username otherwise.
func (u *User) SessionKey() string {
	if u.OAuthProvider != "" {
		return u.Email
	}
	return u.Username
}

// Federated reports whether the identity originates from a social login.
func (u *User) Federated() bool {
	return u.OAuthProvider != ""
}

// NormalizeRoles deduplicates and sorts a role set, dropping empty entries.
// Nil input yields an empty, non-nil set.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role != "" {
			seen[role] = struct{}{}
		}
	}

	normalized := make([]string, 0, len(seen))
	for role := range seen {
		normalized = append(normalized, role)
	}
	sort.Strings(normalized)
	return normalized
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
